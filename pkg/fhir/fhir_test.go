package fhir

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benhaq/sui-nautilus/pkg/common/errors"
)

func TestSemanticFingerprintIgnoresFormatting(t *testing.T) {
	a := []byte(`{"resourceType":"Bundle","id":"b1","total":2}`)
	b := []byte("{\n  \"total\": 2,\n  \"id\": \"b1\",\n  \"resourceType\": \"Bundle\"\n}")

	fpA, err := SemanticFingerprint(a)
	require.NoError(t, err)
	fpB, err := SemanticFingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fpA, fpB)
	assert.Len(t, fpA, 64)
}

func TestSemanticFingerprintDistinguishesContent(t *testing.T) {
	fpA, err := SemanticFingerprint([]byte(`{"id":"b1"}`))
	require.NoError(t, err)
	fpB, err := SemanticFingerprint([]byte(`{"id":"b2"}`))
	require.NoError(t, err)
	assert.NotEqual(t, fpA, fpB)
}

func TestSemanticFingerprintRejectsInvalidJSON(t *testing.T) {
	_, err := SemanticFingerprint([]byte("not json"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindContentIntegrity))
}

func TestVerifyFingerprint(t *testing.T) {
	doc := []byte(`{"resourceType":"Bundle","id":"b1"}`)
	fp, err := SemanticFingerprint(doc)
	require.NoError(t, err)

	require.NoError(t, VerifyFingerprint(doc, fp))

	err = VerifyFingerprint([]byte(`{"resourceType":"Bundle","id":"b2"}`), fp)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindContentIntegrity))
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}))
}

func TestTransform(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "raw record text", req.Messages[1].Content)
		chatReply(t, w, `{"resourceType":"Bundle","id":"b1"}`)
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "test-model", 5*time.Second,
		func() (string, error) { return "sk-test", nil })

	doc, err := c.Transform(context.Background(), []byte("raw record text"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"resourceType":"Bundle","id":"b1"}`, string(doc))
}

func TestTransformStripsCodeFences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "```json\n{\"resourceType\":\"Bundle\"}\n```")
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "test-model", 5*time.Second,
		func() (string, error) { return "sk-test", nil })

	doc, err := c.Transform(context.Background(), []byte("raw"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"resourceType":"Bundle"}`, string(doc))
}

func TestTransformKeySourceFailure(t *testing.T) {
	c := NewOpenRouterClient("http://unused", "test-model", time.Second,
		func() (string, error) {
			return "", errors.New(errors.KindNotProvisioned, "api key not provisioned")
		})

	_, err := c.Transform(context.Background(), []byte("raw"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotProvisioned))
}

func TestTransformRejectsNonJSONOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "sorry, I cannot help with that")
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "test-model", 5*time.Second,
		func() (string, error) { return "sk-test", nil })

	_, err := c.Transform(context.Background(), []byte("raw"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindProtocol))
}

func TestTransformUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenRouterClient(srv.URL, "test-model", 5*time.Second,
		func() (string, error) { return "sk-test", nil })

	_, err := c.Transform(context.Background(), []byte("raw"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindTransport))
}
