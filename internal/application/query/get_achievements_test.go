package query

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deoglory/study-engine/internal/domain/achievement"
	"github.com/deoglory/study-engine/internal/domain/shared"
)

type fakeAchievementRepo struct {
	catalog []achievement.Achievement
	unlocks []achievement.Unlock
}

func (f *fakeAchievementRepo) GetCatalog(_ context.Context) ([]achievement.Achievement, error) {
	return f.catalog, nil
}

func (f *fakeAchievementRepo) GetUnlocks(_ context.Context, userID shared.UserID, limit int) ([]achievement.Unlock, error) {
	var unlocks []achievement.Unlock
	for _, u := range f.unlocks {
		if u.UserID == userID {
			unlocks = append(unlocks, u)
		}
	}
	sort.Slice(unlocks, func(i, j int) bool { return unlocks[i].UnlockedAt.After(unlocks[j].UnlockedAt) })
	if limit > 0 && len(unlocks) > limit {
		unlocks = unlocks[:limit]
	}
	return unlocks, nil
}

func (f *fakeAchievementRepo) GetUnlockedCodes(_ context.Context, userID shared.UserID) (map[string]bool, error) {
	codes := map[string]bool{}
	for _, u := range f.unlocks {
		if u.UserID == userID {
			codes[u.Code] = true
		}
	}
	return codes, nil
}

func (f *fakeAchievementRepo) SaveUnlock(_ context.Context, unlock achievement.Unlock) error {
	for _, u := range f.unlocks {
		if u.UserID == unlock.UserID && u.Code == unlock.Code {
			return shared.ErrAchievementUnlocked
		}
	}
	f.unlocks = append(f.unlocks, unlock)
	return nil
}

func TestGetAchievements_CatalogWithUnlockMarks(t *testing.T) {
	repo := &fakeAchievementRepo{catalog: achievement.DefaultCatalog()}
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveUnlock(context.Background(), achievement.Unlock{
		UserID: testUserID, Code: "first_lesson", UnlockedAt: at,
	}))

	handler := NewGetAchievementsHandler(repo)
	result, err := handler.Handle(context.Background(), GetAchievementsQuery{UserID: testUserID})
	require.NoError(t, err)

	assert.Equal(t, len(achievement.DefaultCatalog()), result.TotalCount)
	assert.Equal(t, 1, result.UnlockedCount)

	var first *AchievementDTO
	for i := range result.Achievements {
		if result.Achievements[i].Code == "first_lesson" {
			first = &result.Achievements[i]
		}
	}
	require.NotNil(t, first)
	assert.True(t, first.IsUnlocked)
	require.NotNil(t, first.UnlockedAt)
	assert.Equal(t, at, *first.UnlockedAt)

	require.Len(t, result.Recent, 1)
	assert.Equal(t, "first_lesson", result.Recent[0].Code)
}

// Секретное достижение видно в каталоге, но без названия и условия,
// пока не разблокировано.
func TestGetAchievements_SecretHiddenUntilUnlocked(t *testing.T) {
	repo := &fakeAchievementRepo{catalog: achievement.DefaultCatalog()}
	handler := NewGetAchievementsHandler(repo)

	findSecret := func(result *GetAchievementsResult) *AchievementDTO {
		for i := range result.Achievements {
			if result.Achievements[i].Code == "streak_100" {
				return &result.Achievements[i]
			}
		}
		return nil
	}

	result, err := handler.Handle(context.Background(), GetAchievementsQuery{UserID: testUserID})
	require.NoError(t, err)
	secret := findSecret(result)
	require.NotNil(t, secret)
	assert.True(t, secret.IsSecret)
	assert.Empty(t, secret.Title)
	assert.Empty(t, secret.Description)

	require.NoError(t, repo.SaveUnlock(context.Background(), achievement.Unlock{
		UserID: testUserID, Code: "streak_100", UnlockedAt: time.Now().UTC(),
	}))
	result, err = handler.Handle(context.Background(), GetAchievementsQuery{UserID: testUserID})
	require.NoError(t, err)
	secret = findSecret(result)
	require.NotNil(t, secret)
	assert.NotEmpty(t, secret.Title)
	assert.True(t, secret.IsUnlocked)
}

func TestGetAchievements_RecentRespectsLimit(t *testing.T) {
	repo := &fakeAchievementRepo{catalog: achievement.DefaultCatalog()}
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, code := range []string{"first_lesson", "streak_7", "xp_1000"} {
		require.NoError(t, repo.SaveUnlock(context.Background(), achievement.Unlock{
			UserID: testUserID, Code: code, UnlockedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	handler := NewGetAchievementsHandler(repo)
	result, err := handler.Handle(context.Background(), GetAchievementsQuery{UserID: testUserID, Limit: 2})
	require.NoError(t, err)

	require.Len(t, result.Recent, 2)
	// Новые первыми.
	assert.Equal(t, "xp_1000", result.Recent[0].Code)
	assert.Equal(t, "streak_7", result.Recent[1].Code)
	assert.Equal(t, 3, result.UnlockedCount)
}

func TestGetAchievements_RequiresUser(t *testing.T) {
	handler := NewGetAchievementsHandler(&fakeAchievementRepo{})

	_, err := handler.Handle(context.Background(), GetAchievementsQuery{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
