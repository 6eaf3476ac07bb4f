package conduit_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"conduit"
	"conduit/internal/domain"
)

func blockingPair(t *testing.T) (*conduit.Blocking, *conduit.Blocking, conduit.Config) {
	t.Helper()
	srv := startRelay(t, "")
	cfg := conduit.Config{AppID: "test/blocking", RelayURL: srv.URL, Stderr: io.Discard}
	w1, err := conduit.NewBlocking(cfg)
	require.NoError(t, err)
	w2, err := conduit.NewBlocking(cfg)
	require.NoError(t, err)
	return w1, w2, cfg
}

func TestBlockingBasic(t *testing.T) {
	ctx := e2eCtx(t)
	w1, w2, _ := blockingPair(t)

	code, err := w1.GetCode(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, w2.SetCode(code))

	type result struct {
		data []byte
		err  error
	}
	r1 := make(chan result, 1)
	r2 := make(chan result, 1)
	go func() {
		d, err := w1.GetData(ctx, []byte("data1"))
		r1 <- result{d, err}
	}()
	go func() {
		d, err := w2.GetData(ctx, []byte("data2"))
		r2 <- result{d, err}
	}()

	res1 := <-r1
	require.NoError(t, res1.err)
	require.Equal(t, "data2", string(res1.data))

	res2 := <-r2
	require.NoError(t, res2.err)
	require.Equal(t, "data1", string(res2.data))

	mood, err := w1.Close(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.MoodHappy, mood)
	mood, err = w2.Close(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.MoodHappy, mood)
}

func TestBlockingFixedCode(t *testing.T) {
	ctx := e2eCtx(t)
	w1, w2, _ := blockingPair(t)

	require.NoError(t, w1.SetCode("123-purple-elephant"))
	require.NoError(t, w2.SetCode("123-purple-elephant"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		d, err := w2.GetData(ctx, []byte("data2"))
		if err == nil && string(d) != "data1" {
			t.Errorf("w2 got %q, want data1", d)
		}
	}()

	d, err := w1.GetData(ctx, []byte("data1"))
	require.NoError(t, err)
	require.Equal(t, "data2", string(d))
	<-done
}

func TestBlockingUsageGuards(t *testing.T) {
	ctx := e2eCtx(t)
	w1, w2, _ := blockingPair(t)

	var usage domain.UsageError

	// Data and verifier before any code step.
	_, err := w1.GetVerifier(ctx)
	require.ErrorAs(t, err, &usage)
	_, err = w1.GetData(ctx, []byte("data"))
	require.ErrorAs(t, err, &usage)

	// Code is single-assignment.
	require.NoError(t, w1.SetCode("123-purple-elephant"))
	err = w1.SetCode("123-nope-nope")
	require.ErrorAs(t, err, &usage)
	_, err = w1.GetCode(ctx, 2)
	require.ErrorAs(t, err, &usage)

	// Same for the allocating side.
	_, err = w2.GetCode(ctx, 2)
	require.NoError(t, err)
	_, err = w2.GetCode(ctx, 2)
	require.ErrorAs(t, err, &usage)
}

func TestBlockingSerializeWindow(t *testing.T) {
	ctx := e2eCtx(t)
	w1, w2, _ := blockingPair(t)

	var usage domain.UsageError

	// Too early on both sides.
	_, err := w1.Serialize()
	require.ErrorAs(t, err, &usage)
	_, err = w2.Serialize()
	require.ErrorAs(t, err, &usage)

	code, err := w1.GetCode(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, w2.SetCode(code))

	// Window open: code known, no data yet.
	_, err = w1.Serialize()
	require.NoError(t, err)
	_, err = w2.Serialize()
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = w2.GetData(ctx, []byte("data2"))
	}()
	_, err = w1.GetData(ctx, []byte("data1"))
	require.NoError(t, err)
	<-done

	// Too late once data exchange has been attempted.
	_, err = w1.Serialize()
	require.ErrorAs(t, err, &usage)
	_, err = w2.Serialize()
	require.ErrorAs(t, err, &usage)
}

func TestBlockingSerializeResume(t *testing.T) {
	ctx := e2eCtx(t)
	w1, w2, cfg := blockingPair(t)

	code, err := w1.GetCode(ctx, 2)
	require.NoError(t, err)
	blob, err := w1.Serialize()
	require.NoError(t, err)

	// Pretend w1's process died; resume from the snapshot.
	resumed, err := conduit.FromSerialized(blob, cfg)
	require.NoError(t, err)

	require.NoError(t, w2.SetCode(code))

	type result struct {
		data []byte
		err  error
	}
	r1 := make(chan result, 1)
	go func() {
		d, err := resumed.GetData(ctx, []byte("data1"))
		r1 <- result{d, err}
	}()

	d2, err := w2.GetData(ctx, []byte("data2"))
	require.NoError(t, err)
	require.Equal(t, "data1", string(d2))

	res := <-r1
	require.NoError(t, res.err)
	require.Equal(t, "data2", string(res.data))

	// The resumed instance is past the window now.
	var usage domain.UsageError
	_, err = resumed.Serialize()
	require.ErrorAs(t, err, &usage)

	mood, err := resumed.Close(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.MoodHappy, mood)
}

func TestBlockingDeriveKeyMatches(t *testing.T) {
	ctx := e2eCtx(t)
	w1, w2, _ := blockingPair(t)

	code, err := w1.GetCode(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, w2.SetCode(code))

	v1, err := w1.GetVerifier(ctx)
	require.NoError(t, err)
	v2, err := w2.GetVerifier(ctx)
	require.NoError(t, err)
	require.Equal(t, v1, v2)

	k1, err := w1.DeriveKey("blocking-sub", 24)
	require.NoError(t, err)
	k2, err := w2.DeriveKey("blocking-sub", 24)
	require.NoError(t, err)
	require.Equal(t, k1, k2)
}
