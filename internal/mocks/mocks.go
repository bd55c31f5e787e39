// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/domsnap/api/schemas"
	"github.com/xkilldash9x/domsnap/internal/browser/cdpclient"
	"github.com/xkilldash9x/domsnap/internal/config"
)

// -- CDP Client Mock --

// MockClient mocks cdpclient.Client.
type MockClient struct {
	mock.Mock
}

var _ cdpclient.Client = (*MockClient)(nil)

func (m *MockClient) EnableDOM(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockClient) EnableRuntime(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockClient) EnableAccessibility(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockClient) GetDocument(ctx context.Context, depth int64, pierce bool) (*cdp.Node, error) {
	args := m.Called(ctx, depth, pierce)
	node, _ := args.Get(0).(*cdp.Node)
	return node, args.Error(1)
}

func (m *MockClient) DescribeNode(ctx context.Context, ref cdpclient.NodeRef, depth int64, pierce bool) (*cdp.Node, error) {
	args := m.Called(ctx, ref, depth, pierce)
	node, _ := args.Get(0).(*cdp.Node)
	return node, args.Error(1)
}

func (m *MockClient) GetFrameTree(ctx context.Context) (*page.FrameTree, error) {
	args := m.Called(ctx)
	tree, _ := args.Get(0).(*page.FrameTree)
	return tree, args.Error(1)
}

func (m *MockClient) GetFrameOwner(ctx context.Context, frameID cdp.FrameID) (cdp.BackendNodeID, error) {
	args := m.Called(ctx, frameID)
	return args.Get(0).(cdp.BackendNodeID), args.Error(1)
}

func (m *MockClient) GetFullAXTree(ctx context.Context, frameID cdp.FrameID) ([]*accessibility.Node, error) {
	args := m.Called(ctx, frameID)
	nodes, _ := args.Get(0).([]*accessibility.Node)
	return nodes, args.Error(1)
}

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	return m.Called().Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	return m.Called().Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Snapshot() config.SnapshotConfig {
	return m.Called().Get(0).(config.SnapshotConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	return m.Called().Get(0).(config.DatabaseConfig)
}

// --- Setters ---

func (m *MockConfig) SetBrowserHeadless(b bool)         { m.Called(b) }
func (m *MockConfig) SetBrowserRemoteURL(u string)      { m.Called(u) }
func (m *MockConfig) SetSnapshotPierceShadow(b bool)    { m.Called(b) }
func (m *MockConfig) SetSnapshotIncludePerFrame(b bool) { m.Called(b) }
func (m *MockConfig) SetSnapshotOutputDir(dir string)   { m.Called(dir) }

// -- Store Mock --

// MockSnapshotStore mocks the persistence used by the CLI.
type MockSnapshotStore struct {
	mock.Mock
}

func (m *MockSnapshotStore) Save(ctx context.Context, snap *schemas.HybridSnapshot) error {
	return m.Called(ctx, snap).Error(0)
}

func (m *MockSnapshotStore) LatestByURL(ctx context.Context, url string) (*schemas.HybridSnapshot, error) {
	args := m.Called(ctx, url)
	snap, _ := args.Get(0).(*schemas.HybridSnapshot)
	return snap, args.Error(1)
}
