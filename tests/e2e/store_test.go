package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tidewater/bmc/internal/canvas"
	"github.com/tidewater/bmc/internal/store"
	"github.com/tidewater/bmc/internal/transcript"
)

var (
	testStore       *store.Store
	testTranscripts *transcript.Store
	setupErr        error
)

func TestMain(m *testing.M) {
	ctx := context.Background()
	logger := zap.NewNop()

	dsn, pgCleanup, err := startPostgres(ctx)
	if err != nil {
		setupErr = err
		os.Exit(m.Run())
	}
	defer pgCleanup()

	testStore, err = store.New(dsn, logger)
	if err != nil {
		setupErr = err
		os.Exit(m.Run())
	}
	defer testStore.Close()

	if err := testStore.Migrate(ctx, "../../migrations"); err != nil {
		setupErr = fmt.Errorf("migrate: %w", err)
		os.Exit(m.Run())
	}

	redisURL, redisCleanup, err := startRedis(ctx)
	if err != nil {
		setupErr = err
		os.Exit(m.Run())
	}
	defer redisCleanup()

	testTranscripts, err = transcript.New(redisURL, 0, logger)
	if err != nil {
		setupErr = err
		os.Exit(m.Run())
	}
	defer testTranscripts.Close()

	os.Exit(m.Run())
}

func requireSetup(t *testing.T) {
	t.Helper()
	if setupErr != nil {
		t.Skipf("test infrastructure unavailable: %v", setupErr)
	}
}

func TestUserLifecycle(t *testing.T) {
	requireSetup(t)
	ctx := context.Background()

	u := canvas.NewUser("Maya Chen", "Bloom & Stem", "Retail")
	u.Goals = []string{"Grow corporate gifting"}
	if err := testStore.CreateUser(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := testStore.CreateUser(ctx, u); !errors.Is(err, store.ErrDuplicateUser) {
		t.Errorf("duplicate create error = %v, want ErrDuplicateUser", err)
	}

	got, err := testStore.GetUser(ctx, u.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BusinessName != "Bloom & Stem" || len(got.Goals) != 1 {
		t.Errorf("got = %+v", got)
	}
	if len(got.KeyInsights.CanvasState) != 9 {
		t.Errorf("canvas blocks = %d, want 9", len(got.KeyInsights.CanvasState))
	}

	got.KeyInsights.CanvasState[canvas.CustomerSegments] = []string{"Gift purchasers"}
	got.KeyInsights.Constraints = []string{"No subscriptions"}
	if err := testStore.ReplaceUser(ctx, got); err != nil {
		t.Fatalf("replace: %v", err)
	}

	again, err := testStore.GetUser(ctx, u.Token)
	if err != nil {
		t.Fatalf("get after replace: %v", err)
	}
	if !again.KeyInsights.Equal(got.KeyInsights) {
		t.Error("insights did not round-trip through JSONB")
	}

	if err := testStore.ResetInsights(ctx, u.Token); err != nil {
		t.Fatalf("reset: %v", err)
	}
	reset, _ := testStore.GetUser(ctx, u.Token)
	if !reset.KeyInsights.Equal(canvas.NewInsights()) {
		t.Error("insights not reset")
	}
	if reset.BusinessName != "Bloom & Stem" {
		t.Error("reset must keep the profile intact")
	}

	if err := testStore.DeleteUser(ctx, u.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := testStore.GetUser(ctx, u.Token); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("get after delete = %v, want ErrUserNotFound", err)
	}
}

func TestUserNotFoundErrors(t *testing.T) {
	requireSetup(t)
	ctx := context.Background()

	if _, err := testStore.GetUser(ctx, "no-such-token"); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("get = %v", err)
	}
	if err := testStore.ResetInsights(ctx, "no-such-token"); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("reset = %v", err)
	}
	if err := testStore.DeleteUser(ctx, "no-such-token"); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("delete = %v", err)
	}
}

func TestTranscriptWindow(t *testing.T) {
	requireSetup(t)
	ctx := context.Background()
	token := "transcript-test-" + fmt.Sprint(time.Now().UnixNano())

	for i := 0; i < 10; i++ {
		turn := transcript.Turn{Speaker: transcript.SpeakerUser, Text: fmt.Sprintf("message %d", i)}
		if i%2 == 1 {
			turn.Speaker = transcript.SpeakerExpert
		}
		if err := testTranscripts.Append(ctx, token, turn); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	window, err := testTranscripts.Window(ctx, token, 4)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(window) != 4 {
		t.Fatalf("window size = %d, want 4", len(window))
	}
	if window[0].Text != "message 6" || window[3].Text != "message 9" {
		t.Errorf("window = %v", window)
	}

	if err := testTranscripts.Clear(ctx, token); err != nil {
		t.Fatalf("clear: %v", err)
	}
	empty, err := testTranscripts.Window(ctx, token, 4)
	if err != nil {
		t.Fatalf("window after clear: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("window after clear = %v", empty)
	}
}
