package conduit

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"conduit/internal/domain"
	"conduit/internal/future"
)

// fakeEngine records forwarded calls and never talks to a relay.
type fakeEngine struct {
	mu         sync.Mutex
	allocCalls []int
	setCalls   []domain.Code
	sendCalls  [][]byte
	closeCalls int
}

var _ domain.Engine = (*fakeEngine)(nil)

func (f *fakeEngine) Start()                     {}
func (f *fakeEngine) InputCode()                 {}
func (f *fakeEngine) SetTrace(string, io.Writer) {}

func (f *fakeEngine) AllocateCode(length int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allocCalls = append(f.allocCalls, length)
}

func (f *fakeEngine) SetCode(code domain.Code) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls = append(f.setCalls, code)
}

func (f *fakeEngine) Send(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls = append(f.sendCalls, p)
}

func (f *fakeEngine) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
}

func (f *fakeEngine) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func awaitCode(t *testing.T, f *future.Value[domain.Code]) domain.Code {
	t.Helper()
	v, err := f.Await(testCtx(t))
	require.NoError(t, err)
	return v
}

func TestScalarBroadcast(t *testing.T) {
	s := &Session{engine: &fakeEngine{}}

	early := []*future.Value[domain.Code]{s.WhenCode(), s.WhenCode(), s.WhenCode()}
	for _, f := range early {
		select {
		case <-f.Done():
			t.Fatal("future resolved before delivery")
		default:
		}
	}

	s.GotCode("4-purple-sausages")
	for _, f := range early {
		require.Equal(t, domain.Code("4-purple-sausages"), awaitCode(t, f))
	}

	// A waiter registered after delivery resolves immediately.
	late := s.WhenCode()
	select {
	case <-late.Done():
	default:
		t.Fatal("late future should resolve immediately from the cache")
	}
	require.Equal(t, domain.Code("4-purple-sausages"), awaitCode(t, late))
}

func TestScalarEventsDeliverEachValue(t *testing.T) {
	s := &Session{engine: &fakeEngine{}}
	key := []byte{1, 2, 3}
	verifier := []byte{9, 9}
	versions := domain.VersionInfo{"app_versions": map[string]any{"v": "1"}}

	fKey, fVer, fVsn := s.WhenKey(), s.WhenVerified(), s.WhenVersion()
	s.GotKey(key)
	s.GotVerifier(verifier)
	s.GotVersion(versions)

	got, err := fKey.Await(testCtx(t))
	require.NoError(t, err)
	require.Equal(t, key, got)

	gotV, err := fVer.Await(testCtx(t))
	require.NoError(t, err)
	require.Equal(t, verifier, gotV)

	gotVsn, err := fVsn.Await(testCtx(t))
	require.NoError(t, err)
	require.Equal(t, versions, gotVsn)
}

func TestMessagesBeforeReaders(t *testing.T) {
	s := &Session{engine: &fakeEngine{}}
	s.Received([]byte("m1"))
	s.Received([]byte("m2"))
	s.Received([]byte("m3"))

	for _, want := range []string{"m1", "m2"} {
		got, err := s.WhenReceived().Await(testCtx(t))
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}

	// m3 stays buffered for the next reader.
	got, err := s.WhenReceived().Await(testCtx(t))
	require.NoError(t, err)
	require.Equal(t, "m3", string(got))
}

func TestReadersBeforeMessages(t *testing.T) {
	s := &Session{engine: &fakeEngine{}}
	r1 := s.WhenReceived()
	r2 := s.WhenReceived()

	s.Received([]byte("a"))
	s.Received([]byte("b"))

	got, err := r1.Await(testCtx(t))
	require.NoError(t, err)
	require.Equal(t, "a", string(got))

	got, err = r2.Await(testCtx(t))
	require.NoError(t, err)
	require.Equal(t, "b", string(got))
}

func TestCleanCloseAsymmetry(t *testing.T) {
	fe := &fakeEngine{}
	s := &Session{engine: fe}

	pendingRead := s.WhenReceived()
	closeF := s.Close()
	require.Equal(t, 1, fe.closes())

	s.Closed(domain.MoodHappy, nil)

	mood, err := closeF.Await(testCtx(t))
	require.NoError(t, err)
	require.Equal(t, domain.MoodHappy, mood)

	_, err = pendingRead.Await(testCtx(t))
	var closed *domain.ClosedError
	require.ErrorAs(t, err, &closed)
	require.Equal(t, domain.MoodHappy, closed.Mood)
}

func TestFailedCloseFailsEverything(t *testing.T) {
	s := &Session{engine: &fakeEngine{}}

	fCode := s.WhenCode()
	fRead := s.WhenReceived()
	fClose := s.Close()

	s.Closed(domain.MoodScary, domain.ErrWrongCode)

	for _, f := range []interface{ Done() <-chan struct{} }{fCode, fRead, fClose} {
		<-f.Done()
	}
	_, err := fCode.Await(testCtx(t))
	require.ErrorIs(t, err, domain.ErrWrongCode)
	_, err = fRead.Await(testCtx(t))
	require.ErrorIs(t, err, domain.ErrWrongCode)
	_, err = fClose.Await(testCtx(t))
	require.ErrorIs(t, err, domain.ErrWrongCode)
}

func TestCloseIsIdempotent(t *testing.T) {
	fe := &fakeEngine{}
	s := &Session{engine: fe}

	first := s.Close()
	second := s.Close()
	require.Equal(t, 1, fe.closes(), "engine close should fire once")

	s.Closed(domain.MoodHappy, nil)

	for _, f := range []*future.Value[domain.Mood]{first, second, s.Close()} {
		mood, err := f.Await(testCtx(t))
		require.NoError(t, err)
		require.Equal(t, domain.MoodHappy, mood)
	}
	require.Equal(t, 1, fe.closes(), "cached outcome must not re-close the engine")
}

func TestReadsAfterCloseFail(t *testing.T) {
	s := &Session{engine: &fakeEngine{}}
	s.GotCode("4-a-b")
	s.Closed(domain.MoodHappy, nil)

	// Even cached scalars fail once the session is over; only the close
	// outcome survives.
	_, err := s.WhenCode().Await(testCtx(t))
	var closed *domain.ClosedError
	require.ErrorAs(t, err, &closed)

	_, err = s.WhenReceived().Await(testCtx(t))
	require.ErrorAs(t, err, &closed)
}

func TestKeySurvivesClose(t *testing.T) {
	s := &Session{engine: &fakeEngine{}}
	s.GotKey([]byte("0123456789abcdef0123456789abcdef"))
	s.Closed(domain.MoodHappy, nil)

	sub, err := s.DeriveKey("post-close", 32)
	require.NoError(t, err)
	require.Len(t, sub, 32)
}

func TestForwarding(t *testing.T) {
	fe := &fakeEngine{}
	s := &Session{engine: fe}

	s.AllocateCode(3)
	s.SetCode("4-a-b")
	s.Send([]byte("hi"))

	fe.mu.Lock()
	defer fe.mu.Unlock()
	require.Equal(t, []int{3}, fe.allocCalls)
	require.Equal(t, []domain.Code{"4-a-b"}, fe.setCalls)
	require.Equal(t, [][]byte{[]byte("hi")}, fe.sendCalls)
}
