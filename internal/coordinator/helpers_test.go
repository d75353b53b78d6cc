package coordinator

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/arkeep-io/krra/internal/membership"
)

var testNodeSeq int64

func nodeWithCapability(agentID string) membership.Node {
	id := atomic.AddInt64(&testNodeSeq, 1)
	return membership.Node{
		ID:           "node-" + strconv.FormatInt(id, 10),
		Capabilities: map[string]string{"agent:" + agentID: ""},
	}
}

func gaugeValue(g prometheus.Gauge) float64 {
	return testutil.ToFloat64(g)
}
