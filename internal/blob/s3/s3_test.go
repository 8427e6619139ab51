package s3blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

const registryDoc = `{"tokens":[
	{"mint":"T1","name":"Token One","decimals":6},
	{"mint":"So11111111111111111111111111111111111111112","name":"SOL","decimals":9}
]}`

// fakeS3 serves path-style object requests from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, f *fakeS3) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), ClientConfig{
		Endpoint:       srv.URL,
		Region:         "us-east-1",
		Bucket:         "solwatch",
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	return c
}

func TestRegistryReader_LoadTokens(t *testing.T) {
	f := &fakeS3{objects: map[string]string{"/solwatch/config/tokens.json": registryDoc}}
	r := NewRegistryReader(newTestClient(t, f), "config/tokens.json")

	tokens, err := r.LoadTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, domain.TokenInfo{TokenID: "T1", DisplayName: "Token One", Decimals: 6}, tokens[0])
	assert.Equal(t, "s3://solwatch/config/tokens.json", r.Name())
}

func TestRegistryReader_MissingObject(t *testing.T) {
	f := &fakeS3{objects: map[string]string{}}
	r := NewRegistryReader(newTestClient(t, f), "config/tokens.json")

	_, err := r.LoadTokens(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDecodeRegistry(t *testing.T) {
	tokens, err := decodeRegistry([]byte(`[{"mint":"A","decimals":0}]`))
	require.NoError(t, err)
	assert.Equal(t, []domain.TokenInfo{{TokenID: "A"}}, tokens)

	bad := map[string]string{
		"not json":         `nope`,
		"missing mint":     `[{"decimals":6}]`,
		"missing decimals": `[{"mint":"A"}]`,
		"decimals range":   `[{"mint":"A","decimals":300}]`,
	}
	for name, doc := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := decodeRegistry([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("https://minio:9000", false))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
}
