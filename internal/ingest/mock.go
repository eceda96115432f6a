package ingest

import "context"

// MockClient implements Client for testing. Results are keyed by URL or
// image filename; a missing key returns an extraction failure.
type MockClient struct {
	Results map[string]*Result
	Err     error
	PingErr error
}

func (m *MockClient) Ping(_ context.Context) error {
	return m.PingErr
}

func (m *MockClient) IngestURL(_ context.Context, url, _ string) (*Result, error) {
	return m.lookup(url)
}

func (m *MockClient) IngestImage(_ context.Context, _, filename string) (*Result, error) {
	return m.lookup(filename)
}

func (m *MockClient) lookup(key string) (*Result, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if r, ok := m.Results[key]; ok {
		return r, nil
	}
	return nil, &APIError{StatusCode: 422, Message: "no workout found in " + key}
}
