package s3blob

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

// registryEntry is one token in the registry document.
type registryEntry struct {
	Mint     string `json:"mint"`
	Name     string `json:"name"`
	Decimals *int   `json:"decimals"`
}

// RegistryReader loads the token registry from a JSON object. The document is
// either {"tokens": [...]} or a bare array of {"mint","name","decimals"}.
type RegistryReader struct {
	client *Client
	key    string
}

// NewRegistryReader reads the registry from key in c's bucket.
func NewRegistryReader(c *Client, key string) *RegistryReader {
	return &RegistryReader{client: c, key: key}
}

// Name identifies the source in logs.
func (r *RegistryReader) Name() string {
	return "s3://" + r.client.bucket + "/" + r.key
}

// LoadTokens downloads and decodes the registry document. A missing object
// wraps domain.ErrNotFound.
func (r *RegistryReader) LoadTokens(ctx context.Context) ([]domain.TokenInfo, error) {
	buf := manager.NewWriteAtBuffer(nil)
	downloader := manager.NewDownloader(r.client.s3, func(d *manager.Downloader) {
		d.Concurrency = 1
	})

	_, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(r.client.bucket),
		Key:    aws.String(r.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", r.key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", r.key, err)
	}

	tokens, err := decodeRegistry(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("s3blob: decode %s: %w", r.key, err)
	}
	return tokens, nil
}

func decodeRegistry(data []byte) ([]domain.TokenInfo, error) {
	var entries []registryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		var doc struct {
			Tokens []registryEntry `json:"tokens"`
		}
		if err2 := json.Unmarshal(data, &doc); err2 != nil {
			return nil, err
		}
		entries = doc.Tokens
	}

	tokens := make([]domain.TokenInfo, 0, len(entries))
	for i, e := range entries {
		if e.Mint == "" {
			return nil, fmt.Errorf("entry %d: mint is required", i)
		}
		if e.Decimals == nil || *e.Decimals < 0 || *e.Decimals > 255 {
			return nil, fmt.Errorf("entry %d (%s): decimals must be 0-255", i, e.Mint)
		}
		tokens = append(tokens, domain.TokenInfo{
			TokenID:     e.Mint,
			DisplayName: e.Name,
			Decimals:    uint8(*e.Decimals),
		})
	}
	return tokens, nil
}

var _ domain.TokenSource = (*RegistryReader)(nil)
