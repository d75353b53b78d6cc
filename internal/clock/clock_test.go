package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAdvanceFiresDueTickers(t *testing.T) {
	f := NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ticker := f.NewTicker(10 * time.Second)

	f.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its interval elapsed")
	default:
	}

	f.Advance(5 * time.Second)
	select {
	case <-ticker.C():
	default:
		t.Fatal("ticker did not fire once its interval elapsed")
	}
}

func TestFakeAdvanceCanFireMultipleIntervalsAtOnce(t *testing.T) {
	f := NewFake(time.Now())
	ticker := f.NewTicker(1 * time.Second)

	f.Advance(3 * time.Second)

	count := 0
	for {
		select {
		case <-ticker.C():
			count++
			continue
		default:
		}
		break
	}
	assert.GreaterOrEqual(t, count, 1, "at least one fire must be observable after crossing multiple intervals")
}

func TestFakeTickerStopPreventsFurtherFires(t *testing.T) {
	f := NewFake(time.Now())
	ticker := f.NewTicker(1 * time.Second)
	ticker.Stop()

	f.Advance(5 * time.Second)
	select {
	case <-ticker.C():
		t.Fatal("a stopped ticker must never fire")
	default:
	}
}
