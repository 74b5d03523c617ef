package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navguard/internal/whitelist"
	"navguard/pkg/model"
)

type fakeCommander struct {
	calls []string
	sent  []string
}

func (f *fakeCommander) Reload(context.Context) error      { f.calls = append(f.calls, "reload"); return nil }
func (f *fakeCommander) GoBack(context.Context) error      { f.calls = append(f.calls, "goBack"); return nil }
func (f *fakeCommander) GoForward(context.Context) error   { f.calls = append(f.calls, "goForward"); return nil }
func (f *fakeCommander) StopLoading(context.Context) error { f.calls = append(f.calls, "stopLoading"); return nil }
func (f *fakeCommander) PostMessage(_ context.Context, data string) error {
	f.calls = append(f.calls, "postMessage")
	f.sent = append(f.sent, data)
	return nil
}

func nav(url string) model.NavigationEvent { return model.NavigationEvent{URL: url} }

func newMachine(platform model.Platform, hooks Hooks, cmd Commander) *Machine {
	return New(Config{
		Platform:  platform,
		Whitelist: whitelist.Compile([]string{"https://*"}),
		Hooks:     hooks,
		Commander: cmd,
	})
}

func TestReloadStartFinish(t *testing.T) {
	cmd := &fakeCommander{}
	m := newMachine(model.PlatformIOS, Hooks{}, cmd)
	require.Equal(t, model.StateIdle, m.State())

	require.NoError(t, m.Reload(context.Background()))
	assert.Equal(t, model.StateLoading, m.State())
	assert.Equal(t, []string{"reload"}, cmd.calls)

	m.OnLoadStart(model.LoadStart{NavigationEvent: nav("https://x.example/")})
	assert.Equal(t, "https://x.example/", m.StartURL())
	assert.Equal(t, model.StateLoading, m.State())

	m.OnLoadingFinish(model.LoadFinish{NavigationEvent: nav("https://x.example/")})
	assert.Equal(t, model.StateIdle, m.State())
}

func TestStartInLoadingState(t *testing.T) {
	m := New(Config{Platform: model.PlatformIOS, StartInLoadingState: true})
	assert.Equal(t, model.StateLoading, m.State())
	assert.Equal(t, OverlayLoading, m.Overlay().Kind)
}

func TestLoadingErrorWithoutHook(t *testing.T) {
	var ended []model.NativeEvent
	m := newMachine(model.PlatformIOS, Hooks{OnLoadEnd: func(ev model.NativeEvent) { ended = append(ended, ev) }}, nil)

	m.OnLoadingError(model.LoadError{
		NavigationEvent: nav("https://x.example/"),
		Error:           model.ErrorEvent{Domain: "NS", Code: -6, Description: "offline"},
	})

	assert.Equal(t, model.StateError, m.State())
	assert.Equal(t, &model.ErrorEvent{Domain: "NS", Code: -6, Description: "offline"}, m.LastError())
	require.Len(t, ended, 1)
	assert.Equal(t, model.EventLoadError, ended[0].Kind())

	o := m.Overlay()
	assert.Equal(t, OverlayError, o.Kind)
	assert.Equal(t, -6, o.Error.Code)
}

func TestLoadingErrorPrevented(t *testing.T) {
	var order []string
	m := newMachine(model.PlatformIOS, Hooks{
		OnError: func(n *ErrorNotice) {
			order = append(order, "error")
			n.PreventDefault()
		},
		OnLoadEnd: func(model.NativeEvent) { order = append(order, "end") },
	}, nil)

	m.OnLoadingError(model.LoadError{NavigationEvent: nav("https://x.example/"), Error: model.ErrorEvent{Code: -1}})

	assert.Equal(t, []string{"error", "end"}, order)
	assert.Equal(t, model.StateIdle, m.State())
	assert.Nil(t, m.LastError())
}

func TestFinishCallsHooksInOrder(t *testing.T) {
	var order []string
	m := newMachine(model.PlatformIOS, Hooks{
		OnLoad:    func(model.LoadFinish) { order = append(order, "load") },
		OnLoadEnd: func(model.NativeEvent) { order = append(order, "end") },
	}, nil)

	m.OnLoadingFinish(model.LoadFinish{NavigationEvent: nav("http://untrusted.example/")})
	assert.Equal(t, []string{"load", "end"}, order)
}

func TestUntrustedFinishKeepsState(t *testing.T) {
	m := newMachine(model.PlatformIOS, Hooks{}, &fakeCommander{})
	require.NoError(t, m.Reload(context.Background()))

	m.OnLoadingFinish(model.LoadFinish{NavigationEvent: nav("http://ads.example/")})
	assert.Equal(t, model.StateLoading, m.State())
}

func TestFinishIdempotent(t *testing.T) {
	loads := 0
	m := newMachine(model.PlatformIOS, Hooks{OnLoad: func(model.LoadFinish) { loads++ }}, nil)

	for i := 0; i < 3; i++ {
		m.OnLoadingFinish(model.LoadFinish{NavigationEvent: nav("https://x.example/")})
		assert.Equal(t, model.StateIdle, m.State())
	}
	assert.Equal(t, 3, loads)
}

func TestAndroidFinishRequiresStartURL(t *testing.T) {
	m := newMachine(model.PlatformAndroid, Hooks{}, &fakeCommander{})
	require.NoError(t, m.Reload(context.Background()))
	m.OnLoadStart(model.LoadStart{NavigationEvent: nav("https://x.example/")})

	m.OnLoadingFinish(model.LoadFinish{NavigationEvent: nav("https://frame.example/")})
	assert.Equal(t, model.StateLoading, m.State())

	m.OnLoadingFinish(model.LoadFinish{NavigationEvent: nav("https://x.example/")})
	assert.Equal(t, model.StateIdle, m.State())
}

func TestProgressCompletesOnAndroidOnly(t *testing.T) {
	android := newMachine(model.PlatformAndroid, Hooks{}, &fakeCommander{})
	require.NoError(t, android.Reload(context.Background()))

	android.OnLoadingProgress(model.LoadProgress{NavigationEvent: nav("https://x.example/"), Progress: 0.5})
	assert.Equal(t, model.StateLoading, android.State())
	android.OnLoadingProgress(model.LoadProgress{NavigationEvent: nav("http://x.example/"), Progress: 1})
	assert.Equal(t, model.StateLoading, android.State())
	android.OnLoadingProgress(model.LoadProgress{NavigationEvent: nav("https://x.example/"), Progress: 1})
	assert.Equal(t, model.StateIdle, android.State())

	ios := newMachine(model.PlatformIOS, Hooks{}, &fakeCommander{})
	require.NoError(t, ios.Reload(context.Background()))
	ios.OnLoadingProgress(model.LoadProgress{NavigationEvent: nav("https://x.example/"), Progress: 1})
	assert.Equal(t, model.StateLoading, ios.State())
}

func TestProgressDoesNotClearError(t *testing.T) {
	m := newMachine(model.PlatformAndroid, Hooks{}, nil)
	m.OnLoadingError(model.LoadError{NavigationEvent: nav("https://x.example/"), Error: model.ErrorEvent{Code: -2}})

	m.OnLoadingProgress(model.LoadProgress{NavigationEvent: nav("https://x.example/"), Progress: 1})
	assert.Equal(t, model.StateError, m.State())
}

func TestErrorThenReload(t *testing.T) {
	m := newMachine(model.PlatformIOS, Hooks{}, &fakeCommander{})
	m.OnLoadingError(model.LoadError{NavigationEvent: nav("https://x.example/"), Error: model.ErrorEvent{Code: -2}})
	require.Equal(t, model.StateError, m.State())

	require.NoError(t, m.Reload(context.Background()))
	assert.Equal(t, model.StateLoading, m.State())
}

func TestCommandsDelegate(t *testing.T) {
	cmd := &fakeCommander{}
	m := newMachine(model.PlatformIOS, Hooks{}, cmd)
	ctx := context.Background()

	require.NoError(t, m.GoBack(ctx))
	require.NoError(t, m.GoForward(ctx))
	require.NoError(t, m.StopLoading(ctx))
	require.NoError(t, m.PostMessage(ctx, `{"a":1}`))

	assert.Equal(t, []string{"goBack", "goForward", "stopLoading", "postMessage"}, cmd.calls)
	assert.Equal(t, []string{`{"a":1}`}, cmd.sent)
	assert.Equal(t, model.StateIdle, m.State())
}

func TestCommandWithoutCommander(t *testing.T) {
	m := newMachine(model.PlatformIOS, Hooks{}, nil)
	assert.Error(t, m.GoBack(context.Background()))

	m.SetCommander(&fakeCommander{})
	assert.NoError(t, m.GoBack(context.Background()))
}

func TestHookPanicIsContained(t *testing.T) {
	m := newMachine(model.PlatformIOS, Hooks{
		OnError: func(*ErrorNotice) { panic("host bug") },
	}, nil)

	assert.NotPanics(t, func() {
		m.OnLoadingError(model.LoadError{NavigationEvent: nav("https://x.example/"), Error: model.ErrorEvent{Code: -1}})
	})
	assert.Equal(t, model.StateError, m.State())
}

func TestOverlayInvalidState(t *testing.T) {
	m := newMachine(model.PlatformIOS, Hooks{}, nil)
	m.state = model.LoadingState(42)
	assert.Equal(t, Overlay{Kind: OverlayNone}, m.Overlay())

	m.state = model.StateError
	assert.Equal(t, Overlay{Kind: OverlayNone}, m.Overlay())
}
