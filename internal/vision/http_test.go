package vision

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "raw-image", string(body))
		w.Write([]byte(`{"predictions": [{"label": "cow", "score": 0.91}, {"label": "hay", "score": 0.05}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	preds, err := c.Classify(context.Background(), []byte("raw-image"))
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "cow", preds[0].Label)
	assert.InDelta(t, 0.91, preds[0].Score, 1e-9)
}

func TestHTTPIdentifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"class_id": "12", "score": 0.84}`))
	}))
	defer srv.Close()

	c := NewHTTPIdentifier(srv.URL, time.Second)
	classID, score, err := c.Identify(context.Background(), []byte("raw-image"))
	require.NoError(t, err)
	assert.Equal(t, "12", classID)
	assert.InDelta(t, 0.84, score, 1e-9)
}

func TestHTTPErrorsAreUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	_, err := c.Classify(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnavailable)

	i := NewHTTPIdentifier(srv.URL, time.Second)
	_, _, err = i.Identify(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	_, err := c.Classify(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPBadResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, time.Second)
	_, err := c.Classify(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnavailable)
}
