package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordLLMRequest(t *testing.T) {
	before := testutil.ToFloat64(LLMRequestsTotal.WithLabelValues("cohere", "chat", "error"))
	RecordLLMRequest("cohere", "chat", errors.New("boom"), time.Second)
	after := testutil.ToFloat64(LLMRequestsTotal.WithLabelValues("cohere", "chat", "error"))
	assert.Equal(t, before+1, after)
}

func TestRecordTokensSkipsZero(t *testing.T) {
	before := testutil.ToFloat64(LLMTokensTotal.WithLabelValues("test", "prompt"))
	RecordTokens("test", 0, 5)
	assert.Equal(t, before, testutil.ToFloat64(LLMTokensTotal.WithLabelValues("test", "prompt")))
	RecordTokens("test", 7, 0)
	assert.Equal(t, before+7, testutil.ToFloat64(LLMTokensTotal.WithLabelValues("test", "prompt")))
}

func TestStatusText(t *testing.T) {
	tests := map[int]string{200: "2xx", 302: "3xx", 404: "4xx", 429: "4xx", 503: "5xx"}
	for code, want := range tests {
		assert.Equal(t, want, statusText(code), "code %d", code)
	}
}
