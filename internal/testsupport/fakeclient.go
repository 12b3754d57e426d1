package testsupport

import (
	"context"
	"sync"

	"berth/internal/downloads"
)

// FakeClient is a scriptable downloads.Client for tests. Snapshots are set
// directly; errors are injected per operation name.
type FakeClient struct {
	mu sync.Mutex

	Snapshots   []downloads.DownloadInfo
	SavePath    string
	Categories  []string
	NextAddedID string

	// Errs maps operation names ("test", "getDownloads", "getDownload",
	// "addDownload", "removeDownload", "pauseDownload", "resumeDownload",
	// "getDefaultSavePath", "getCategories", "ensureCategory") to the error
	// each call returns.
	Errs map[string]error

	Calls   []string
	Removed []string
	Paused  []string
	Resumed []string
}

// NewFakeClient constructs an empty fake client.
func NewFakeClient() *FakeClient {
	return &FakeClient{Errs: make(map[string]error), NextAddedID: "fake-1"}
}

// SetSnapshots replaces the snapshot list.
func (f *FakeClient) SetSnapshots(infos ...downloads.DownloadInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Snapshots = append([]downloads.DownloadInfo{}, infos...)
}

// FailWith injects an error for the named operation; nil clears it.
func (f *FakeClient) FailWith(operation string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Errs, operation)
		return
	}
	f.Errs[operation] = err
}

func (f *FakeClient) record(op string) error {
	f.Calls = append(f.Calls, op)
	return f.Errs[op]
}

func (f *FakeClient) Test(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("test")
}

func (f *FakeClient) AddDownload(ctx context.Context, source downloads.Source, opts downloads.AddOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("addDownload"); err != nil {
		return "", err
	}
	return f.NextAddedID, nil
}

func (f *FakeClient) GetDownloads(ctx context.Context, category string) ([]downloads.DownloadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("getDownloads"); err != nil {
		return nil, err
	}
	return append([]downloads.DownloadInfo{}, f.Snapshots...), nil
}

func (f *FakeClient) GetDownload(ctx context.Context, id string) (downloads.DownloadInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("getDownload"); err != nil {
		return downloads.DownloadInfo{}, err
	}
	for _, info := range f.Snapshots {
		if info.ID == id {
			return info, nil
		}
	}
	return downloads.DownloadInfo{}, downloads.Wrap(downloads.ErrNotFound, "fake", "getDownload", nil)
}

func (f *FakeClient) RemoveDownload(ctx context.Context, id string, deleteFiles bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("removeDownload"); err != nil {
		return err
	}
	f.Removed = append(f.Removed, id)
	kept := f.Snapshots[:0]
	for _, info := range f.Snapshots {
		if info.ID != id {
			kept = append(kept, info)
		}
	}
	f.Snapshots = kept
	return nil
}

func (f *FakeClient) PauseDownload(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("pauseDownload"); err != nil {
		return err
	}
	f.Paused = append(f.Paused, id)
	return nil
}

func (f *FakeClient) ResumeDownload(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("resumeDownload"); err != nil {
		return err
	}
	f.Resumed = append(f.Resumed, id)
	return nil
}

func (f *FakeClient) GetDefaultSavePath(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("getDefaultSavePath"); err != nil {
		return "", err
	}
	return f.SavePath, nil
}

func (f *FakeClient) GetCategories(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("getCategories"); err != nil {
		return nil, err
	}
	return append([]string{}, f.Categories...), nil
}

func (f *FakeClient) EnsureCategory(ctx context.Context, name, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("ensureCategory")
}

// CallCount returns how many times the named operation ran.
func (f *FakeClient) CallCount(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.Calls {
		if call == operation {
			count++
		}
	}
	return count
}
