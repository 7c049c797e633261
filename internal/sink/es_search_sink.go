package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/syncdata/cdc-relay/internal/domain"
	pkglog "github.com/syncdata/cdc-relay/pkg/log"
)

// ESConfig holds search index connection settings.
type ESConfig struct {
	Addresses          []string
	Username           string
	Password           string
	Index              string
	Refresh            string // wait_for, true or false
	CACertPath         string
	InsecureSkipVerify bool // opt-in only, for self-signed endpoints
	Timeout            time.Duration
}

// NewESClient creates an Elasticsearch client with basic auth and the
// configured TLS trust.
func NewESClient(cfg ESConfig) (*elasticsearch.Client, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicit opt-in
	}

	if cfg.CACertPath != "" {
		pem, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read elasticsearch CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CACertPath)
		}
		tlsConfig.RootCAs = pool
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsConfig,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return client, nil
}

// ESPinger adapts a client to a readiness probe.
type ESPinger struct {
	client *elasticsearch.Client
}

// NewESPinger creates a readiness probe for client.
func NewESPinger(client *elasticsearch.Client) *ESPinger {
	return &ESPinger{client: client}
}

// Ping issues a HEAD / against the cluster.
func (p *ESPinger) Ping(ctx context.Context) error {
	res, err := p.client.Ping(p.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

// ESSearchSink implements SearchSink on one Elasticsearch index.
type ESSearchSink struct {
	client  *elasticsearch.Client
	index   string
	refresh string
	timeout time.Duration
}

// NewESSearchSink creates a search sink writing to index.
func NewESSearchSink(client *elasticsearch.Client, index, refresh string, timeout time.Duration) *ESSearchSink {
	return &ESSearchSink{
		client:  client,
		index:   index,
		refresh: refresh,
		timeout: timeout,
	}
}

// UpsertAsUpdate merges the snapshot into the document with id _id using
// doc_as_upsert. _id is a metadata field and is not sent in the body. A
// snapshot without _id is logged and ignored.
func (s *ESSearchSink) UpsertAsUpdate(ctx context.Context, snapshot domain.Snapshot) error {
	id, ok := snapshot.ID()
	if !ok {
		l := pkglog.Ctx(ctx)
		l.Warn().Str(pkglog.FieldSink, "search").Msg("snapshot has no _id, not indexed")
		return nil
	}
	docID := domain.KeyString(id)

	data, err := json.Marshal(map[string]interface{}{
		"doc":           snapshot.Body(),
		"doc_as_upsert": true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", docID, err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	opts := []func(*esapi.UpdateRequest){s.client.Update.WithContext(ctx)}
	if s.refresh != "" {
		opts = append(opts, s.client.Update.WithRefresh(s.refresh))
	}

	res, err := s.client.Update(s.index, docID, bytes.NewReader(data), opts...)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", docID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}

// Delete removes the document with the given key. A 404 means it is
// already gone.
func (s *ESSearchSink) Delete(ctx context.Context, key any) error {
	if key == nil {
		return fmt.Errorf("search delete: %w", ErrMissingID)
	}
	docID := domain.KeyString(key)

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	opts := []func(*esapi.DeleteRequest){s.client.Delete.WithContext(ctx)}
	if s.refresh != "" {
		opts = append(opts, s.client.Delete.WithRefresh(s.refresh))
	}

	res, err := s.client.Delete(s.index, docID, opts...)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}
