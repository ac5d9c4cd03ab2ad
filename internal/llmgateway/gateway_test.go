package llmgateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/livereview-cr/livereview-cr/internal/apperrors"
)

func TestClassifyLLMErrorMapsTimeout(t *testing.T) {
	err := classifyLLMError(errors.New("context deadline exceeded"))
	llmErr, ok := err.(*apperrors.LLMError)
	assert.True(t, ok)
	assert.Equal(t, apperrors.LLMTimeout, llmErr.Kind)
}

func TestClassifyLLMErrorMapsRateLimit(t *testing.T) {
	err := classifyLLMError(errors.New("429 Too Many Requests"))
	llmErr := err.(*apperrors.LLMError)
	assert.Equal(t, apperrors.LLMRateLimited, llmErr.Kind)
}

func TestClassifyLLMErrorMapsAuth(t *testing.T) {
	err := classifyLLMError(errors.New("401 unauthorized: invalid api key"))
	llmErr := err.(*apperrors.LLMError)
	assert.Equal(t, apperrors.LLMAuth, llmErr.Kind)
}

func TestClassifyLLMErrorDefaultsToTransport(t *testing.T) {
	err := classifyLLMError(errors.New("connection reset by peer"))
	llmErr := err.(*apperrors.LLMError)
	assert.Equal(t, apperrors.LLMTransport, llmErr.Kind)
}

func TestGatewayShouldRetryOnlyTransportAndRateLimited(t *testing.T) {
	g := &Gateway{}
	assert.True(t, g.shouldRetry(&apperrors.LLMError{Kind: apperrors.LLMTransport}))
	assert.True(t, g.shouldRetry(&apperrors.LLMError{Kind: apperrors.LLMRateLimited}))
	assert.False(t, g.shouldRetry(&apperrors.LLMError{Kind: apperrors.LLMAuth}))
	assert.False(t, g.shouldRetry(&apperrors.LLMError{Kind: apperrors.LLMTimeout}))
	assert.False(t, g.shouldRetry(&apperrors.LLMError{Kind: apperrors.LLMParse}))
	assert.False(t, g.shouldRetry(errors.New("plain error")))
}

func TestBuildBackendRejectsUnknownProvider(t *testing.T) {
	_, err := buildBackend(BackendConfig{Provider: "not-a-real-provider"})
	assert.Error(t, err)
}
