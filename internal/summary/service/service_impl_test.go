package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/briefly-app/briefly/internal/clock"
	"github.com/briefly-app/briefly/internal/config"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	creditsservice "github.com/briefly-app/briefly/internal/credits/service"
	"github.com/briefly-app/briefly/internal/summarizer/adapters"
	summarizerdomain "github.com/briefly-app/briefly/internal/summarizer/domain"
	"github.com/briefly-app/briefly/internal/summary/domain"
	transcriptdomain "github.com/briefly-app/briefly/internal/transcript/domain"
	usagedomain "github.com/briefly-app/briefly/internal/usage/domain"
	usageservice "github.com/briefly-app/briefly/internal/usage/service"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
	userrepository "github.com/briefly-app/briefly/internal/user/repository"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
	videorepository "github.com/briefly-app/briefly/internal/video/repository"
)

const testVideoID = "dQw4w9WgXcQ"

type stubProvider struct {
	name   videodomain.Provider
	result *summarizerdomain.Result
	err    error
	calls  int
}

func (p *stubProvider) Name() videodomain.Provider { return p.name }

func (p *stubProvider) Summarize(ctx context.Context, req summarizerdomain.Request) (*summarizerdomain.Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

type stubMetadata struct{}

func (stubMetadata) Resolve(ctx context.Context, videoID string) (videodomain.Metadata, error) {
	return videodomain.Metadata{Title: "Test Video", ChannelID: "UC123"}, nil
}

type stubTranscripts struct {
	err   error
	calls int
}

func (s *stubTranscripts) GetOrFetch(ctx context.Context, video *videodomain.Video) (*videodomain.Transcript, bool, error) {
	s.calls++
	if s.err != nil {
		return nil, false, s.err
	}
	return &videodomain.Transcript{
		VideoRef: video.ID,
		Text:     "hello from the transcript",
		Source:   videodomain.TranscriptSourceAuto,
	}, false, nil
}

type summaryFixture struct {
	db          *gorm.DB
	node        *snowflake.Node
	fake        *clock.FakeClock
	svc         domain.Service
	credits     creditsdomain.Service
	provider    *stubProvider
	transcripts *stubTranscripts
}

func newSummaryFixture(t *testing.T) *summaryFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.User{},
		&creditsdomain.CreditTransaction{},
		&videodomain.Video{},
		&videodomain.Transcript{},
		&videodomain.Summary{},
		&videodomain.VideoAccess{},
		&usagedomain.UsageLog{},
	))

	fake := clock.NewFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)

	credits := creditsservice.NewService(creditsservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
	})
	usage := usageservice.NewService(usageservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake,
	})
	users := userrepository.Provide(userrepository.Params{DB: db})
	videos := videorepository.Provide(videorepository.Params{DB: db, Log: log, GenID: node})

	provider := &stubProvider{
		name: videodomain.ProviderOpenAI,
		result: &summarizerdomain.Result{
			Summary:   "a concise summary",
			KeyPoints: []string{"first", "second"},
			Tags:      []string{"test"},
			Model:     "stub-model",
		},
	}
	transcripts := &stubTranscripts{}

	cfg := config.Config{
		CacheTTL:          30 * 24 * time.Hour,
		GenerationTimeout: 10 * time.Second,
	}

	svc := NewService(Params{
		Cfg:         cfg,
		Log:         log,
		Clock:       fake,
		GenID:       node,
		Users:       users,
		Videos:      videos,
		Metadata:    stubMetadata{},
		Credits:     credits,
		Transcripts: transcripts,
		Providers:   adapters.NewRegistry(provider),
		Usage:       usage,
	})

	return &summaryFixture{
		db:          db,
		node:        node,
		fake:        fake,
		svc:         svc,
		credits:     credits,
		provider:    provider,
		transcripts: transcripts,
	}
}

func (f *summaryFixture) seedUser(t *testing.T, balance int, pro bool) *userdomain.User {
	t.Helper()

	user := &userdomain.User{
		ID:                f.node.Generate(),
		Email:             fmt.Sprintf("%s@example.com", f.node.Generate()),
		Plan:              userdomain.PlanFree,
		CreditsBalance:    balance,
		MonthlyAllocation: 30,
		NextResetAt:       time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		ReferralCode:      f.node.Generate().String(),
	}
	if pro {
		user.Plan = userdomain.PlanPro
		user.SubscriptionStatus = userdomain.SubscriptionStatusActive
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *summaryFixture) request(userID snowflake.ID) domain.Request {
	return domain.Request{
		UserID:   userID,
		VideoRaw: testVideoID,
		Provider: videodomain.ProviderOpenAI,
		Length:   videodomain.LengthMedium,
	}
}

func (f *summaryFixture) usageLogs(t *testing.T, userID snowflake.ID) []usagedomain.UsageLog {
	t.Helper()

	var logs []usagedomain.UsageLog
	require.NoError(t, f.db.Where("user_id = ?", userID).Order("created_at asc, id asc").Find(&logs).Error)
	return logs
}

func TestSummarizeValidation(t *testing.T) {
	ctx := context.Background()
	f := newSummaryFixture(t)
	user := f.seedUser(t, 5, false)

	t.Run("invalid provider", func(t *testing.T) {
		req := f.request(user.ID)
		req.Provider = "grok"
		_, err := f.svc.Summarize(ctx, req)
		assert.ErrorIs(t, err, videodomain.ErrInvalidProvider)
	})

	t.Run("invalid length", func(t *testing.T) {
		req := f.request(user.ID)
		req.Length = "gigantic"
		_, err := f.svc.Summarize(ctx, req)
		assert.ErrorIs(t, err, videodomain.ErrInvalidLength)
	})

	t.Run("invalid video id", func(t *testing.T) {
		req := f.request(user.ID)
		req.VideoRaw = "not a video"
		_, err := f.svc.Summarize(ctx, req)
		assert.ErrorIs(t, err, videodomain.ErrInvalidVideoID)
	})

	t.Run("unknown user", func(t *testing.T) {
		req := f.request(f.node.Generate())
		_, err := f.svc.Summarize(ctx, req)
		assert.ErrorIs(t, err, creditsdomain.ErrUserNotFound)
	})

	// none of the rejected requests touched credits or the provider
	balance, err := f.credits.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, balance)
	assert.Equal(t, 0, f.provider.calls)
}

func TestSummarizeMissThenHit(t *testing.T) {
	ctx := context.Background()
	f := newSummaryFixture(t)

	first := f.seedUser(t, 5, false)
	second := f.seedUser(t, 3, false)

	result, err := f.svc.Summarize(ctx, f.request(first.ID))
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, 4, result.CreditsRemaining)
	assert.Equal(t, "a concise summary", result.Summary.Text)
	assert.Equal(t, first.ID, result.Summary.GeneratedBy)
	assert.Equal(t, 1, f.provider.calls)

	logs := f.usageLogs(t, first.ID)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].CacheHit)
	assert.True(t, logs[0].Success)
	assert.Equal(t, 1, logs[0].CreditsCharged)

	// second user gets the shared summary without another generation
	result, err = f.svc.Summarize(ctx, f.request(second.ID))
	require.NoError(t, err)
	assert.True(t, result.Cached)
	assert.Equal(t, 2, result.CreditsRemaining)
	assert.Equal(t, first.ID, result.Summary.GeneratedBy, "generated_by records the original requester")
	assert.Equal(t, 1, f.provider.calls, "cache hit must not call the provider")

	logs = f.usageLogs(t, second.ID)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].CacheHit)
	assert.Equal(t, 1, logs[0].CreditsCharged)

	// hit/miss counters on the video row
	var video videodomain.Video
	require.NoError(t, f.db.First(&video, "video_id = ?", testVideoID).Error)
	assert.Equal(t, int64(1), video.CacheHits)
	assert.Equal(t, int64(1), video.CacheMisses)

	t.Run("different length generates separately", func(t *testing.T) {
		req := f.request(first.ID)
		req.Length = videodomain.LengthShort
		result, err := f.svc.Summarize(ctx, req)
		require.NoError(t, err)
		assert.False(t, result.Cached)
		assert.Equal(t, 2, f.provider.calls)
	})
}

func TestSummarizeInsufficientCredits(t *testing.T) {
	ctx := context.Background()
	f := newSummaryFixture(t)
	user := f.seedUser(t, 0, false)

	_, err := f.svc.Summarize(ctx, f.request(user.ID))
	assert.ErrorIs(t, err, creditsdomain.ErrInsufficientCredits)
	assert.Equal(t, 0, f.provider.calls)
	assert.Equal(t, 0, f.transcripts.calls)
}

func TestSummarizeGenerationFailureRefunds(t *testing.T) {
	ctx := context.Background()

	t.Run("provider failure", func(t *testing.T) {
		f := newSummaryFixture(t)
		user := f.seedUser(t, 4, false)
		f.provider.err = summarizerdomain.ErrGenerationFailed

		_, err := f.svc.Summarize(ctx, f.request(user.ID))
		assert.ErrorIs(t, err, summarizerdomain.ErrGenerationFailed)

		balance, err := f.credits.Balance(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, balance, "deduct then refund nets to zero")

		var entries []creditsdomain.CreditTransaction
		require.NoError(t, f.db.Where("user_id = ?", user.ID).Order("created_at asc, id asc").Find(&entries).Error)
		require.Len(t, entries, 2)
		assert.Equal(t, creditsdomain.KindDeduction, entries[0].Kind)
		assert.Equal(t, creditsdomain.KindRefund, entries[1].Kind)

		logs := f.usageLogs(t, user.ID)
		require.Len(t, logs, 1)
		assert.False(t, logs[0].Success)
		assert.NotEmpty(t, logs[0].Error)

		// the failure is not cached
		var count int64
		require.NoError(t, f.db.Model(&videodomain.Summary{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("transcript failure", func(t *testing.T) {
		f := newSummaryFixture(t)
		user := f.seedUser(t, 4, false)
		f.transcripts.err = transcriptdomain.ErrTranscriptFetch

		_, err := f.svc.Summarize(ctx, f.request(user.ID))
		assert.ErrorIs(t, err, transcriptdomain.ErrTranscriptFetch)

		balance, err := f.credits.Balance(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, balance)
		assert.Equal(t, 0, f.provider.calls)
	})
}

func TestSummarizePro(t *testing.T) {
	ctx := context.Background()
	f := newSummaryFixture(t)
	pro := f.seedUser(t, 7, true)

	result, err := f.svc.Summarize(ctx, f.request(pro.ID))
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, 7, result.CreditsRemaining, "pro balance is reported, never charged")

	// a second call hits the cache, still free
	result, err = f.svc.Summarize(ctx, f.request(pro.ID))
	require.NoError(t, err)
	assert.True(t, result.Cached)
	assert.Equal(t, 7, result.CreditsRemaining)

	var entries []creditsdomain.CreditTransaction
	require.NoError(t, f.db.Where("user_id = ?", pro.ID).Find(&entries).Error)
	assert.Empty(t, entries)

	logs := f.usageLogs(t, pro.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, 0, logs[0].CreditsCharged)
	assert.Equal(t, 0, logs[1].CreditsCharged)
}

func TestSummarizeUnconfiguredProvider(t *testing.T) {
	ctx := context.Background()
	f := newSummaryFixture(t)
	user := f.seedUser(t, 5, false)

	req := f.request(user.ID)
	req.Provider = videodomain.ProviderAnthropic

	_, err := f.svc.Summarize(ctx, req)
	assert.ErrorIs(t, err, summarizerdomain.ErrProviderNotFound)

	balance, err := f.credits.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, balance, "no deduction for an unavailable provider")
}

func TestSummarizeLazyMonthlyReset(t *testing.T) {
	ctx := context.Background()
	f := newSummaryFixture(t)
	user := f.seedUser(t, 0, false)

	// past the reset boundary the request succeeds off the fresh allocation
	f.fake.Set(time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC))

	result, err := f.svc.Summarize(ctx, f.request(user.ID))
	require.NoError(t, err)
	assert.Equal(t, 29, result.CreditsRemaining)
}

func TestTranscript(t *testing.T) {
	ctx := context.Background()
	f := newSummaryFixture(t)
	f.seedUser(t, 5, false)

	transcript, err := f.svc.Transcript(ctx, "https://youtu.be/"+testVideoID)
	require.NoError(t, err)
	assert.Equal(t, "hello from the transcript", transcript.Text)

	t.Run("invalid id", func(t *testing.T) {
		_, err := f.svc.Transcript(ctx, "???")
		assert.ErrorIs(t, err, videodomain.ErrInvalidVideoID)
	})
}
