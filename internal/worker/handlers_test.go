package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podslice/internal/db"
	"podslice/internal/models"
	"podslice/internal/test"
	"podslice/internal/transcript"
	"podslice/internal/wav"
	"podslice/pkg/tasks"
)

// mockTaskEnqueuer is a mock implementation of tasks.TaskEnqueuer for testing.
type mockTaskEnqueuer struct {
	enqueuedTasks []*asynq.Task
}

func (m *mockTaskEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.enqueuedTasks = append(m.enqueuedTasks, task)
	return &asynq.TaskInfo{ID: "test-task-id", Queue: "default"}, nil
}

// fakeResolver returns a canned transcript for every request.
type fakeResolver struct {
	result *transcript.Result
	err    error
	calls  int
}

func (f *fakeResolver) Resolve(ctx context.Context, req transcript.Request) (*transcript.Result, error) {
	f.calls++
	return f.result, f.err
}

// fakeGenerator replays scripted responses in call order.
type fakeGenerator struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", fmt.Errorf("unexpected generate call %d", i)
}

// fakeSynth returns one second of silence per call and records the voices
// it was asked to speak with.
type fakeSynth struct {
	voices []string
	err    error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	f.voices = append(f.voices, voice)
	return silentWAV(1), "audio/wav", nil
}

func (f *fakeSynth) SynthesizeDialogueLine(ctx context.Context, speaker, text, voiceA, voiceB string) ([]byte, string, error) {
	voice := voiceB
	if speaker == "A" {
		voice = voiceA
	}
	return f.Synthesize(ctx, text, voice)
}

// fakeStore keeps uploads in memory and serves downloads from a fixture map.
type fakeStore struct {
	uploads   map[string][]byte
	downloads map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: map[string][]byte{}, downloads: map[string][]byte{}}
}

func (f *fakeStore) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	f.uploads[path] = data
	return "s3://test-bucket/" + path, nil
}

func (f *fakeStore) Download(ctx context.Context, path string) ([]byte, error) {
	data, ok := f.downloads[path]
	if !ok {
		return nil, fmt.Errorf("no such object: %s", path)
	}
	return data, nil
}

// fakeNotifier counts lifecycle notifications.
type fakeNotifier struct {
	ready  int
	failed int
}

func (f *fakeNotifier) EpisodeReady(user *models.User, episode models.Episode) error {
	f.ready++
	return nil
}

func (f *fakeNotifier) EpisodeFailed(user *models.User, episode models.Episode) error {
	f.failed++
	return nil
}

// silentWAV builds a canonical WAV of n seconds of silence in the default
// format.
func silentWAV(seconds int) []byte {
	pcm := make([]byte, wav.DefaultFormat.ByteRate()*seconds)
	return append(wav.BuildHeader(len(pcm), wav.DefaultFormat), pcm...)
}

var episodeColumns = []string{
	"id", "user_id", "podcast_id", "source_url", "title", "mode", "target_minutes",
	"transcript", "summary", "audio_location", "duration_seconds", "status", "task_id",
	"created_at", "updated_at",
}

func episodeRow(e models.Episode) *sqlmock.Rows {
	return sqlmock.NewRows(episodeColumns).AddRow(
		e.ID, e.UserID, e.PodcastID, e.SourceURL, e.Title, e.Mode, e.TargetMinutes,
		e.Transcript, e.Summary, e.AudioLocation, e.DurationSeconds, e.Status, e.TaskID,
		e.CreatedAt, e.UpdatedAt,
	)
}

func newTestHandler(enqueuer tasks.TaskEnqueuer, resolver *fakeResolver, gen *fakeGenerator, synth *fakeSynth, store *fakeStore, notifier *fakeNotifier) *TaskHandler {
	return NewTaskHandler(enqueuer, resolver, gen, synth, synth, store, notifier, nil,
		Voices{Single: "alloy", A: "onyx", B: "nova"})
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	return b
}

func TestHandleGenerateEpisodeTask(t *testing.T) {
	_, mock := test.NewMockDB(t)

	podcastID := int64(7)
	episode := models.Episode{
		ID:        "ep-1",
		PodcastID: &podcastID,
		SourceURL: "https://www.youtube.com/watch?v=abc123",
		Title:     "Test Episode",
		Mode:      models.ModeSingle,
		Status:    db.StatusPending,
		CreatedAt: time.Now(),
	}
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs("ep-1").WillReturnRows(episodeRow(episode))
	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("ep-1", db.StatusProcessing, "", db.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes SET transcript = \$2`).
		WithArgs("ep-1", "the full transcript").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes SET summary = \$2`).
		WithArgs("ep-1", "a tight summary").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("ep-1", db.StatusCompleted, sqlmock.AnyArg(), 1, db.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resolver := &fakeResolver{result: &transcript.Result{
		Transcript: "the full transcript",
		Provider:   "video-api",
		Attempts:   []transcript.Attempt{{Provider: "video-api", Success: true}},
	}}
	gen := &fakeGenerator{responses: []string{"a tight summary", "a short narration script"}}
	synth := &fakeSynth{}
	store := newFakeStore()
	notifier := &fakeNotifier{}

	handler := newTestHandler(&mockTaskEnqueuer{}, resolver, gen, synth, store, notifier)

	task := asynq.NewTask(tasks.TypeGenerateEpisode, mustMarshal(t, tasks.GenerateEpisodePayload{EpisodeID: "ep-1"}))
	err := handler.HandleGenerateEpisodeTask(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, 1, resolver.calls)
	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, []string{"alloy"}, synth.voices)
	require.Len(t, store.uploads, 1)
	for path, data := range store.uploads {
		assert.True(t, strings.HasPrefix(path, "episodes/ep-1/"))
		assert.True(t, wav.IsWAV(data))
		seconds, ok := wav.DurationSeconds(data)
		assert.True(t, ok)
		assert.InDelta(t, 1.0, seconds, 0.01)
	}
	// Catalog episodes have no user to notify.
	assert.Equal(t, 0, notifier.ready)
}

func TestHandleGenerateEpisodeTaskSkipsUnclaimableEpisode(t *testing.T) {
	_, mock := test.NewMockDB(t)

	episode := models.Episode{ID: "ep-2", SourceURL: "https://example.com/pod", Status: db.StatusCompleted}
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs("ep-2").WillReturnRows(episodeRow(episode))
	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("ep-2", db.StatusProcessing, "", db.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 0))

	resolver := &fakeResolver{}
	gen := &fakeGenerator{}
	handler := newTestHandler(&mockTaskEnqueuer{}, resolver, gen, &fakeSynth{}, newFakeStore(), &fakeNotifier{})

	task := asynq.NewTask(tasks.TypeGenerateEpisode, mustMarshal(t, tasks.GenerateEpisodePayload{EpisodeID: "ep-2"}))
	err := handler.HandleGenerateEpisodeTask(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, 0, resolver.calls)
	assert.Equal(t, 0, gen.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleGenerateEpisodeTaskReusesStoredTranscript(t *testing.T) {
	_, mock := test.NewMockDB(t)

	transcriptText := "already extracted"
	summaryText := "already summarized"
	episode := models.Episode{
		ID:         "ep-3",
		SourceURL:  "https://www.youtube.com/watch?v=abc123",
		Mode:       models.ModeSingle,
		Status:     db.StatusPending,
		Transcript: &transcriptText,
		Summary:    &summaryText,
	}
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs("ep-3").WillReturnRows(episodeRow(episode))
	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("ep-3", db.StatusProcessing, "", db.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("ep-3", db.StatusCompleted, sqlmock.AnyArg(), 1, db.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	resolver := &fakeResolver{}
	gen := &fakeGenerator{responses: []string{"a short narration script"}}
	handler := newTestHandler(&mockTaskEnqueuer{}, resolver, gen, &fakeSynth{}, newFakeStore(), &fakeNotifier{})

	task := asynq.NewTask(tasks.TypeGenerateEpisode, mustMarshal(t, tasks.GenerateEpisodePayload{EpisodeID: "ep-3"}))
	err := handler.HandleGenerateEpisodeTask(context.Background(), task)
	require.NoError(t, err)

	// The resolver must not run again; only the script generation does.
	assert.Equal(t, 0, resolver.calls)
	assert.Equal(t, 1, gen.calls)
}

func TestHandleGenerateEpisodeTaskFansOutLargeScripts(t *testing.T) {
	_, mock := test.NewMockDB(t)

	transcriptText := "t"
	summaryText := "s"
	episode := models.Episode{
		ID:         "ep-4",
		SourceURL:  "https://www.youtube.com/watch?v=abc123",
		Mode:       models.ModeSingle,
		Status:     db.StatusPending,
		Transcript: &transcriptText,
		Summary:    &summaryText,
	}
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs("ep-4").WillReturnRows(episodeRow(episode))
	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("ep-4", db.StatusProcessing, "", db.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// 13 chunks of 125 words each, past the fan-out threshold.
	script := strings.TrimSpace(strings.Repeat("word ", 13*125))
	for i := 0; i < 13; i++ {
		mock.ExpectExec(`INSERT INTO audio_chunks`).
			WithArgs("ep-4", i, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	gen := &fakeGenerator{responses: []string{script}}
	enqueuer := &mockTaskEnqueuer{}
	synth := &fakeSynth{}
	handler := newTestHandler(enqueuer, &fakeResolver{}, gen, synth, newFakeStore(), &fakeNotifier{})

	task := asynq.NewTask(tasks.TypeGenerateEpisode, mustMarshal(t, tasks.GenerateEpisodePayload{EpisodeID: "ep-4"}))
	err := handler.HandleGenerateEpisodeTask(context.Background(), task)
	require.NoError(t, err)

	// Nothing synthesized inline; 13 chunk tasks queued instead.
	assert.Empty(t, synth.voices)
	require.Len(t, enqueuer.enqueuedTasks, 13)
	for i, queued := range enqueuer.enqueuedTasks {
		assert.Equal(t, tasks.TypeSynthesizeChunk, queued.Type())
		var p tasks.SynthesizeChunkPayload
		require.NoError(t, json.Unmarshal(queued.Payload(), &p))
		assert.Equal(t, i, p.ChunkIndex)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleGenerateDialogueEpisodeTask(t *testing.T) {
	_, mock := test.NewMockDB(t)

	transcriptText := "t"
	summaryText := "s"
	episode := models.Episode{
		ID:         "ep-5",
		SourceURL:  "https://www.youtube.com/watch?v=abc123",
		Mode:       models.ModeDialogue,
		Status:     db.StatusPending,
		Transcript: &transcriptText,
		Summary:    &summaryText,
	}
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs("ep-5").WillReturnRows(episodeRow(episode))
	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("ep-5", db.StatusProcessing, "", db.StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("ep-5", db.StatusCompleted, sqlmock.AnyArg(), 3, db.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	gen := &fakeGenerator{responses: []string{
		`[{"speaker":"A","text":"Welcome back."},{"speaker":"B","text":"Glad to be here."},{"speaker":"A","text":"Let's dig in."}]`,
	}}
	synth := &fakeSynth{}
	handler := newTestHandler(&mockTaskEnqueuer{}, &fakeResolver{}, gen, synth, newFakeStore(), &fakeNotifier{})

	task := asynq.NewTask(tasks.TypeGenerateDialogueEpisode, mustMarshal(t, tasks.GenerateEpisodePayload{EpisodeID: "ep-5"}))
	err := handler.HandleGenerateDialogueEpisodeTask(context.Background(), task)
	require.NoError(t, err)

	// Speaker A gets voiceA, speaker B gets voiceB, in line order.
	assert.Equal(t, []string{"onyx", "nova", "onyx"}, synth.voices)
}

func TestCombineAndFinalizeDiscardsLostRace(t *testing.T) {
	_, mock := test.NewMockDB(t)

	userID := int64(42)
	episode := models.Episode{
		ID:        "ep-10",
		UserID:    &userID,
		SourceURL: "https://www.youtube.com/watch?v=abc123",
		Mode:      models.ModeSingle,
		Status:    db.StatusProcessing,
	}

	// The guarded finalize misses: the episode failed while audio uploaded.
	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("ep-10", db.StatusCompleted, sqlmock.AnyArg(), 1, db.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// A ready notification would load the user; it must never get here.
	userRows := sqlmock.NewRows([]string{"id", "email", "first_name", "api_token", "feed_uuid", "notify_in_app", "notify_email", "created_at", "updated_at"}).
		AddRow(userID, "x@example.com", "X", "tok", "uuid", true, true, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT \* FROM users WHERE id = \$1`).
		WithArgs(userID).WillReturnRows(userRows)

	notifier := &fakeNotifier{}
	store := newFakeStore()
	handler := newTestHandler(&mockTaskEnqueuer{}, &fakeResolver{}, &fakeGenerator{}, &fakeSynth{}, store, notifier)

	err := handler.combineAndFinalize(context.Background(), episode, [][]byte{silentWAV(1)}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, notifier.ready)
}

func TestHandleWorkflowFailure(t *testing.T) {
	_, mock := test.NewMockDB(t)

	userID := int64(42)
	episode := models.Episode{
		ID:        "ep-6",
		UserID:    &userID,
		SourceURL: "https://www.youtube.com/watch?v=abc123",
		Title:     "Doomed Episode",
		Status:    db.StatusProcessing,
	}
	mock.ExpectExec(`UPDATE episodes SET status = \$2`).
		WithArgs("ep-6", db.StatusFailed, db.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs("ep-6").WillReturnRows(episodeRow(episode))
	userRows := sqlmock.NewRows([]string{"id", "email", "first_name", "api_token", "feed_uuid", "notify_in_app", "notify_email", "created_at", "updated_at"}).
		AddRow(userID, "x@example.com", "X", "tok", "uuid", true, true, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT \* FROM users WHERE id = \$1`).
		WithArgs(userID).WillReturnRows(userRows)

	notifier := &fakeNotifier{}
	handler := newTestHandler(&mockTaskEnqueuer{}, &fakeResolver{}, &fakeGenerator{}, &fakeSynth{}, newFakeStore(), notifier)

	payload := mustMarshal(t, tasks.GenerateEpisodePayload{EpisodeID: "ep-6"})
	handler.HandleWorkflowFailure(tasks.TypeGenerateEpisode, payload)

	assert.Equal(t, 1, notifier.failed)
	assert.Equal(t, 0, notifier.ready)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleCombineChunksTaskWaitsForPendingChunks(t *testing.T) {
	_, mock := test.NewMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audio_chunks`).
		WithArgs("ep-7", db.ChunkPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	store := newFakeStore()
	handler := newTestHandler(&mockTaskEnqueuer{}, &fakeResolver{}, &fakeGenerator{}, &fakeSynth{}, store, &fakeNotifier{})

	task := asynq.NewTask(tasks.TypeCombineChunks, mustMarshal(t, tasks.CombineChunksPayload{EpisodeID: "ep-7"}))
	err := handler.HandleCombineChunksTask(context.Background(), task)
	require.NoError(t, err)

	assert.Empty(t, store.uploads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleCombineChunksTaskStitchesInIndexOrder(t *testing.T) {
	_, mock := test.NewMockDB(t)

	episode := models.Episode{
		ID:        "ep-8",
		SourceURL: "https://www.youtube.com/watch?v=abc123",
		Mode:      models.ModeSingle,
		Status:    db.StatusProcessing,
	}
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM audio_chunks`).
		WithArgs("ep-8", db.ChunkPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs("ep-8").WillReturnRows(episodeRow(episode))

	path0, path1 := "episodes/ep-8/chunks/0.wav", "episodes/ep-8/chunks/1.wav"
	chunkCols := []string{"episode_id", "chunk_index", "text", "object_path", "status", "created_at", "updated_at"}
	chunkRows := sqlmock.NewRows(chunkCols).
		AddRow("ep-8", 0, "first", path0, db.ChunkDone, time.Now(), time.Now()).
		AddRow("ep-8", 1, "second", path1, db.ChunkDone, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT \* FROM audio_chunks WHERE episode_id = \$1 ORDER BY chunk_index`).
		WithArgs("ep-8").WillReturnRows(chunkRows)
	mock.ExpectExec(`UPDATE episodes`).
		WithArgs("ep-8", db.StatusCompleted, sqlmock.AnyArg(), 3, db.StatusProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := newFakeStore()
	store.downloads[path0] = silentWAV(1)
	store.downloads[path1] = silentWAV(2)

	handler := newTestHandler(&mockTaskEnqueuer{}, &fakeResolver{}, &fakeGenerator{}, &fakeSynth{}, store, &fakeNotifier{})

	task := asynq.NewTask(tasks.TypeCombineChunks, mustMarshal(t, tasks.CombineChunksPayload{EpisodeID: "ep-8"}))
	err := handler.HandleCombineChunksTask(context.Background(), task)
	require.NoError(t, err)

	require.Len(t, store.uploads, 1)
	for _, data := range store.uploads {
		seconds, ok := wav.DurationSeconds(data)
		assert.True(t, ok)
		assert.InDelta(t, 3.0, seconds, 0.01)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleSynthesizeChunkTask(t *testing.T) {
	_, mock := test.NewMockDB(t)

	chunkCols := []string{"episode_id", "chunk_index", "text", "object_path", "status", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT \* FROM audio_chunks WHERE episode_id = \$1 AND chunk_index = \$2`).
		WithArgs("ep-9", 3).
		WillReturnRows(sqlmock.NewRows(chunkCols).
			AddRow("ep-9", 3, "chunk text", nil, db.ChunkPending, time.Now(), time.Now()))

	episode := models.Episode{
		ID:        "ep-9",
		SourceURL: "https://www.youtube.com/watch?v=abc123",
		Mode:      models.ModeSingle,
		Status:    db.StatusProcessing,
	}
	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs("ep-9").WillReturnRows(episodeRow(episode))
	mock.ExpectExec(`UPDATE audio_chunks`).
		WithArgs("ep-9", 3, db.ChunkDone, "episodes/ep-9/chunks/3.wav").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := newFakeStore()
	enqueuer := &mockTaskEnqueuer{}
	handler := newTestHandler(enqueuer, &fakeResolver{}, &fakeGenerator{}, &fakeSynth{}, store, &fakeNotifier{})

	task := asynq.NewTask(tasks.TypeSynthesizeChunk, mustMarshal(t, tasks.SynthesizeChunkPayload{EpisodeID: "ep-9", ChunkIndex: 3}))
	err := handler.HandleSynthesizeChunkTask(context.Background(), task)
	require.NoError(t, err)

	assert.Contains(t, store.uploads, "episodes/ep-9/chunks/3.wav")
	require.Len(t, enqueuer.enqueuedTasks, 1)
	assert.Equal(t, tasks.TypeCombineChunks, enqueuer.enqueuedTasks[0].Type())
	assert.NoError(t, mock.ExpectationsWereMet())
}
