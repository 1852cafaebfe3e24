package lessonsai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deoglory/study-engine/internal/domain/practice"
	"github.com/deoglory/study-engine/internal/domain/shared"
)

// testClientConfig returns a config without throttling so tests run fast.
func testClientConfig(baseURL string) ClientConfig {
	cfg := DefaultClientConfig(baseURL)
	cfg.APIKey = "test-key"
	cfg.Timeout = 2 * time.Second
	cfg.RateLimiterConfig = RateLimiterConfig{
		RequestsPerSecond: 1000,
		BurstSize:         100,
		MinInterval:       0,
		WaitTimeout:       time.Second,
		RetryAfter:        time.Second,
	}
	return cfg
}

func questionsPayload(n int) APIResponse[WeekQuestionsDTO] {
	dto := WeekQuestionsDTO{WeekID: "genesis-01", GeneratedAt: time.Now().UTC()}
	for i := 0; i < n; i++ {
		dto.Questions = append(dto.Questions, QuestionDTO{
			ID:          fmt.Sprintf("q-%02d", i+1),
			Kind:        "true_false",
			Prompt:      fmt.Sprintf("Pergunta %d", i+1),
			CorrectBool: i%2 == 0,
		})
	}
	return APIResponse[WeekQuestionsDTO]{Success: true, Data: dto}
}

func mustWeekID(t *testing.T) shared.WeekID {
	t.Helper()
	weekID, err := shared.NewWeekID("genesis-01")
	require.NoError(t, err)
	return weekID
}

func TestClient_QuestionsForWeek(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(questionsPayload(10))
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))
	questions, err := client.QuestionsForWeek(context.Background(), mustWeekID(t), 10)
	require.NoError(t, err)

	require.Len(t, questions, 10)
	// Generator order is preserved.
	assert.Equal(t, "q-01", questions[0].ID)
	assert.Equal(t, "q-10", questions[9].ID)
	assert.Equal(t, practice.KindTrueFalse, questions[0].Kind)

	assert.Equal(t, "/api/v1/weeks/genesis-01/questions?count=10", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestClient_QuestionsForWeek_TruncatesExtraQuestions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(questionsPayload(12))
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))
	questions, err := client.QuestionsForWeek(context.Background(), mustWeekID(t), 10)
	require.NoError(t, err)
	assert.Len(t, questions, 10)
}

func TestClient_QuestionsForWeek_ShortSetIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(questionsPayload(5))
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))
	_, err := client.QuestionsForWeek(context.Background(), mustWeekID(t), 10)
	assert.ErrorIs(t, err, shared.ErrExternalService)
}

func TestClient_QuestionsForWeek_GeneratorFailureFlag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(APIResponse[WeekQuestionsDTO]{
			Success: false,
			Error:   "generation failed",
		})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))
	_, err := client.QuestionsForWeek(context.Background(), mustWeekID(t), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrExternalService)
	assert.Contains(t, err.Error(), "generation failed")
}

func TestClient_QuestionsForWeek_MalformedQuestionRejectsSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := questionsPayload(10)
		payload.Data.Questions[3].Kind = "essay"
		json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))
	_, err := client.QuestionsForWeek(context.Background(), mustWeekID(t), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "map questions")
}

func TestClient_QuestionsForWeek_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(questionsPayload(10))
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))
	questions, err := client.QuestionsForWeek(context.Background(), mustWeekID(t), 10)
	require.NoError(t, err)
	assert.Len(t, questions, 10)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_QuestionsForWeek_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(APIResponse[struct{}]{Error: "unknown week"})
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))
	_, err := client.QuestionsForWeek(context.Background(), mustWeekID(t), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown week")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_IsHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL))
	assert.True(t, client.IsHealthy(context.Background()))

	server.Close()
	assert.False(t, client.IsHealthy(context.Background()))
}

func TestMapper_QuestionFromDTO(t *testing.T) {
	mapper := NewMapper()

	q, err := mapper.QuestionFromDTO(QuestionDTO{
		ID:            "  q-01  ",
		Kind:          " Multiple_Choice ",
		Prompt:        " Quem construiu a arca? ",
		Options:       []string{"Moisés", "Noé", "Abraão", "Davi"},
		CorrectOption: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "q-01", q.ID)
	assert.Equal(t, practice.KindMultipleChoice, q.Kind)
	assert.Equal(t, "Quem construiu a arca?", q.Prompt)

	_, err = mapper.QuestionFromDTO(QuestionDTO{ID: "q-02", Kind: "essay", Prompt: "?"})
	assert.Error(t, err)
}

func TestMapper_NilPayload(t *testing.T) {
	_, err := NewMapper().QuestionsFromDTO(nil)
	assert.ErrorIs(t, err, ErrNilDTO)
}

func TestRateLimiter_BurstThenThrottle(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.1,
		BurstSize:         3,
		WaitTimeout:       10 * time.Millisecond,
	})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.TryAllow())
	}
	assert.False(t, rl.TryAllow())
}

func TestRateLimiter_RecordRateLimitHitDrainsBucket(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	require.True(t, rl.TryAllow())

	rl.RecordRateLimitHit(time.Minute)

	status := rl.Status()
	assert.Less(t, status.AvailableTokens, 1.0)
	assert.Less(t, status.RefillRate, 2.0)

	rl.Reset()
	assert.True(t, rl.TryAllow())
}
