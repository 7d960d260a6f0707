package crawl_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	filterconfig "github.com/jonesrussell/goprospect/internal/config/filter"
	limiterconfig "github.com/jonesrussell/goprospect/internal/config/limiter"
	"github.com/jonesrussell/goprospect/internal/crawl"
	"github.com/jonesrussell/goprospect/internal/database"
	"github.com/jonesrussell/goprospect/internal/directory"
	"github.com/jonesrussell/goprospect/internal/domain"
	"github.com/jonesrussell/goprospect/internal/filter"
	"github.com/jonesrussell/goprospect/internal/health"
	"github.com/jonesrussell/goprospect/internal/logger"
	"github.com/jonesrussell/goprospect/internal/stats"
)

type fakeTargets struct {
	checkpoints   []int
	doneNotes     []*string
	failErrors    []string
	requeueNotes  []string
	checkpointErr error
}

func (f *fakeTargets) CheckpointPage(_ context.Context, _ int64, page int, writes func(tx *sqlx.Tx) error) error {
	if f.checkpointErr != nil {
		return f.checkpointErr
	}
	if err := writes(nil); err != nil {
		return err
	}
	f.checkpoints = append(f.checkpoints, page)
	return nil
}

func (f *fakeTargets) MarkDone(_ context.Context, _ int64, note *string) error {
	f.doneNotes = append(f.doneNotes, note)
	return nil
}

func (f *fakeTargets) MarkFailed(_ context.Context, _ int64, lastError string) error {
	f.failErrors = append(f.failErrors, lastError)
	return nil
}

func (f *fakeTargets) Requeue(_ context.Context, _ int64, note string) error {
	f.requeueNotes = append(f.requeueNotes, note)
	return nil
}

type fakeCompanies struct {
	upserts []database.UpsertParams
	err     error
}

func (f *fakeCompanies) UpsertTx(_ context.Context, _ *sqlx.Tx, params database.UpsertParams) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.upserts = append(f.upserts, params)
	return database.UpsertInserted, nil
}

type fakeRejects struct {
	rejects []database.RejectParams
}

func (f *fakeRejects) InsertTx(_ context.Context, _ *sqlx.Tx, params database.RejectParams) error {
	f.rejects = append(f.rejects, params)
	return nil
}

type fakeJournal struct {
	checkpoints []int
	requeues    []string
}

func (f *fakeJournal) PageCheckpoint(_ int64, page int) error {
	f.checkpoints = append(f.checkpoints, page)
	return nil
}

func (f *fakeJournal) TargetRequeued(_ int64, detail string) error {
	f.requeues = append(f.requeues, detail)
	return nil
}

// scriptedFetcher replays a fixed sequence of fetch results.
type scriptedFetcher struct {
	results []*domain.FetchResult
	urls    []string
}

func (f *scriptedFetcher) Fetch(_ context.Context, pageURL string) (*domain.FetchResult, error) {
	if len(f.urls) >= len(f.results) {
		return nil, errors.New("fetch script exhausted")
	}
	res := f.results[len(f.urls)]
	f.urls = append(f.urls, pageURL)
	return res, nil
}

func (f *scriptedFetcher) FinishTarget(context.Context) error { return nil }
func (f *scriptedFetcher) Rotate(context.Context) error       { return nil }
func (f *scriptedFetcher) Close() error                       { return nil }

// scriptedSource maps fetched bodies to parsed listings.
type scriptedSource struct {
	pages     map[string][]*domain.Listing
	parseErrs map[string]error
}

func (s *scriptedSource) Name() string { return "yellowpages" }

func (s *scriptedSource) PlanTarget(string, string, string, int) directory.TargetPlan {
	return directory.TargetPlan{}
}

func (s *scriptedSource) PageURL(target *domain.Target, page int) string {
	return fmt.Sprintf("%s?page=%d", target.PrimaryURL, page)
}

func (s *scriptedSource) ParsePage(html []byte, _ string) ([]*domain.Listing, error) {
	if err := s.parseErrs[string(html)]; err != nil {
		return nil, err
	}
	return s.pages[string(html)], nil
}

type fixture struct {
	targets   *fakeTargets
	companies *fakeCompanies
	rejects   *fakeRejects
	fetcher   *scriptedFetcher
	journal   *fakeJournal
	monitor   *health.Monitor
	collector *stats.Collector
	runner    *crawl.Runner
}

func newFixture(t *testing.T, results []*domain.FetchResult, pages map[string][]*domain.Listing, parseErrs map[string]error) *fixture {
	t.Helper()

	f := &fixture{
		targets:   &fakeTargets{},
		companies: &fakeCompanies{},
		rejects:   &fakeRejects{},
		fetcher:   &scriptedFetcher{results: results},
		journal:   &fakeJournal{},
		collector: stats.NewCollector(),
	}
	f.monitor = health.NewMonitor(&limiterconfig.Config{
		BaseDelay:        time.Millisecond,
		MinDelay:         time.Millisecond,
		MaxDelay:         2 * time.Millisecond,
		ErrorThreshold:   0.5,
		CaptchaThreshold: 0.5,
		WindowSize:       10,
	})

	lists := &filter.Lists{
		Allowlist:   map[string]bool{"plumbers": true},
		Blocklist:   map[string]bool{},
		DenyDomains: map[string]bool{},
	}
	decider := filter.New(&filterconfig.Config{
		MinScore:           50,
		EquipmentOnlyLabel: "Equipment & Services",
	}, lists)

	runner, err := crawl.NewRunner(crawl.Deps{
		Targets:   f.targets,
		Companies: f.companies,
		Rejects:   f.rejects,
		Source:    &scriptedSource{pages: pages, parseErrs: parseErrs},
		Fetcher:   f.fetcher,
		Filter:    decider,
		Monitor:   f.monitor,
		Logger:    logger.NewNoOp(),
		Journal:   f.journal,
		Stats:     f.collector,
	}, crawl.Config{
		CooldownBase: time.Millisecond,
		CooldownCap:  2 * time.Millisecond,
		Seed:         1,
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	f.runner = runner
	return f
}

func inProgressTarget(pageTarget int) *domain.Target {
	return &domain.Target{
		ID:         7,
		State:      "TX",
		City:       "Austin",
		CitySlug:   "austin-tx",
		Category:   "plumbers",
		PrimaryURL: "https://www.yellowpages.com/austin-tx/plumbers",
		Status:     domain.TargetStatusInProgress,
		PageTarget: pageTarget,
		Attempts:   1,
	}
}

func acceptedListing(name string) *domain.Listing {
	website := "https://" + strings.ToLower(strings.ReplaceAll(name, " ", "")) + ".com"
	return &domain.Listing{
		Name:         name,
		Website:      &website,
		CategoryTags: []string{"Plumbers"},
	}
}

func rejectedListing(name string) *domain.Listing {
	return &domain.Listing{
		Name:         name,
		CategoryTags: []string{"Plumbers"},
	}
}

func okPage(body string) *domain.FetchResult {
	return &domain.FetchResult{Outcome: domain.FetchOK, Status: 200, Body: []byte(body)}
}

func deniedPage(outcome domain.FetchOutcome) *domain.FetchResult {
	return &domain.FetchResult{Outcome: outcome, Status: 403, Reason: "challenge page"}
}

func transientPage() *domain.FetchResult {
	return &domain.FetchResult{Outcome: domain.FetchTransient, Status: 502, Reason: "bad gateway"}
}

func TestRunner_CrawlsAllPagesAndMarksDone(t *testing.T) {
	f := newFixture(t,
		[]*domain.FetchResult{okPage("p1"), okPage("p2"), okPage("p3")},
		map[string][]*domain.Listing{
			"p1": {acceptedListing("Joes Plumbing"), rejectedListing("No Site Plumbing")},
			"p2": {acceptedListing("Drain Kings")},
			"p3": {acceptedListing("Pipe Pros")},
		}, nil)

	outcome, err := f.runner.Run(context.Background(), inProgressTarget(3), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome != crawl.OutcomeDone {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeDone)
	}

	wantPages := []int{1, 2, 3}
	if len(f.targets.checkpoints) != len(wantPages) {
		t.Fatalf("checkpointed pages = %v, want %v", f.targets.checkpoints, wantPages)
	}
	for i, page := range wantPages {
		if f.targets.checkpoints[i] != page {
			t.Errorf("checkpoint[%d] = %d, want %d", i, f.targets.checkpoints[i], page)
		}
	}
	if len(f.journal.checkpoints) != len(wantPages) {
		t.Errorf("journaled checkpoints = %v, want %v", f.journal.checkpoints, wantPages)
	}

	if len(f.targets.doneNotes) != 1 || f.targets.doneNotes[0] != nil {
		t.Errorf("doneNotes = %v, want one nil note", f.targets.doneNotes)
	}

	if len(f.companies.upserts) != 3 {
		t.Fatalf("upserts = %d, want 3", len(f.companies.upserts))
	}
	first := f.companies.upserts[0]
	if first.Source != "yellowpages" {
		t.Errorf("upsert source = %q, want yellowpages", first.Source)
	}
	if first.Target == nil || first.Target.ID != 7 {
		t.Errorf("upsert target = %+v, want ID 7", first.Target)
	}
	if first.Listing.Name != "Joes Plumbing" {
		t.Errorf("upsert listing = %q, want Joes Plumbing", first.Listing.Name)
	}

	if len(f.rejects.rejects) != 1 {
		t.Fatalf("rejects = %d, want 1", len(f.rejects.rejects))
	}
	reject := f.rejects.rejects[0]
	if reject.Page != 1 || reject.Outcome.Reason != domain.ReasonNoWebsite {
		t.Errorf("reject = page %d reason %q, want page 1 reason %q",
			reject.Page, reject.Outcome.Reason, domain.ReasonNoWebsite)
	}

	summary := f.collector.Summary()
	if summary.Pages != 3 || summary.ListingsSeen != 4 || summary.ListingsAccepted != 3 {
		t.Errorf("summary pages/seen/accepted = %d/%d/%d, want 3/4/3",
			summary.Pages, summary.ListingsSeen, summary.ListingsAccepted)
	}
	if summary.UpsertsByResult[database.UpsertInserted] != 3 {
		t.Errorf("inserted upserts = %d, want 3", summary.UpsertsByResult[database.UpsertInserted])
	}
	if summary.RejectsByReason[domain.ReasonNoWebsite] != 1 {
		t.Errorf("no_website rejects = %d, want 1", summary.RejectsByReason[domain.ReasonNoWebsite])
	}

	wantURL := "https://www.yellowpages.com/austin-tx/plumbers?page=2"
	if f.fetcher.urls[1] != wantURL {
		t.Errorf("second fetch URL = %q, want %q", f.fetcher.urls[1], wantURL)
	}
}

func TestRunner_EarlyExitWhenFirstPageAcceptsNothing(t *testing.T) {
	f := newFixture(t,
		[]*domain.FetchResult{okPage("p1")},
		map[string][]*domain.Listing{
			"p1": {rejectedListing("No Site Plumbing")},
		}, nil)

	outcome, err := f.runner.Run(context.Background(), inProgressTarget(3), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome != crawl.OutcomeDoneEarly {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeDoneEarly)
	}

	// Page 1 is still checkpointed before the early exit, so the reject
	// row and the progress marker survive.
	if len(f.targets.checkpoints) != 1 || f.targets.checkpoints[0] != 1 {
		t.Errorf("checkpoints = %v, want [1]", f.targets.checkpoints)
	}
	if len(f.targets.doneNotes) != 1 || f.targets.doneNotes[0] == nil {
		t.Fatalf("doneNotes = %v, want one non-nil note", f.targets.doneNotes)
	}
	if *f.targets.doneNotes[0] != domain.NoteEarlyExitNoResults {
		t.Errorf("done note = %q, want %q", *f.targets.doneNotes[0], domain.NoteEarlyExitNoResults)
	}
	if len(f.fetcher.urls) != 1 {
		t.Errorf("fetched %d pages, want 1", len(f.fetcher.urls))
	}
}

func TestRunner_ResumesFromCheckpoint(t *testing.T) {
	f := newFixture(t,
		[]*domain.FetchResult{okPage("p2"), okPage("p3")},
		map[string][]*domain.Listing{
			"p2": {acceptedListing("Drain Kings")},
			"p3": {acceptedListing("Pipe Pros")},
		}, nil)

	target := inProgressTarget(3)
	target.PageCurrent = 1

	outcome, err := f.runner.Run(context.Background(), target, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome != crawl.OutcomeDone {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeDone)
	}
	if len(f.fetcher.urls) != 2 || !strings.HasSuffix(f.fetcher.urls[0], "page=2") {
		t.Errorf("fetched URLs = %v, want pages 2 and 3 only", f.fetcher.urls)
	}
	if len(f.targets.checkpoints) != 2 || f.targets.checkpoints[0] != 2 {
		t.Errorf("checkpoints = %v, want [2 3]", f.targets.checkpoints)
	}
}

func TestRunner_RequeuesOnCaptcha(t *testing.T) {
	f := newFixture(t,
		[]*domain.FetchResult{okPage("p1"), deniedPage(domain.FetchCaptcha)},
		map[string][]*domain.Listing{
			"p1": {acceptedListing("Joes Plumbing")},
		}, nil)

	outcome, err := f.runner.Run(context.Background(), inProgressTarget(3), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome != crawl.OutcomeRequeued {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeRequeued)
	}

	if len(f.targets.requeueNotes) != 1 || f.targets.requeueNotes[0] != domain.NoteCoolingDown {
		t.Errorf("requeue notes = %v, want [%s]", f.targets.requeueNotes, domain.NoteCoolingDown)
	}
	if len(f.targets.doneNotes) != 0 {
		t.Errorf("target marked done on captcha: %v", f.targets.doneNotes)
	}
	// Page 1 stays checkpointed so the requeued target resumes at page 2.
	if len(f.targets.checkpoints) != 1 || f.targets.checkpoints[0] != 1 {
		t.Errorf("checkpoints = %v, want [1]", f.targets.checkpoints)
	}
	if len(f.journal.requeues) != 1 || f.journal.requeues[0] != string(domain.FetchCaptcha) {
		t.Errorf("journal requeues = %v, want [captcha]", f.journal.requeues)
	}
	if got := f.monitor.Counters().Captchas; got != 1 {
		t.Errorf("monitor captchas = %d, want 1", got)
	}
}

func TestRunner_RequeuesOnBlock(t *testing.T) {
	f := newFixture(t,
		[]*domain.FetchResult{deniedPage(domain.FetchBlocked)},
		nil, nil)

	outcome, err := f.runner.Run(context.Background(), inProgressTarget(2), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome != crawl.OutcomeRequeued {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeRequeued)
	}
	if len(f.journal.requeues) != 1 || f.journal.requeues[0] != string(domain.FetchBlocked) {
		t.Errorf("journal requeues = %v, want [blocked]", f.journal.requeues)
	}
	if got := f.monitor.Counters().Blocks; got != 1 {
		t.Errorf("monitor blocks = %d, want 1", got)
	}
}

func TestRunner_FailsAfterConsecutiveTransientFailures(t *testing.T) {
	f := newFixture(t,
		[]*domain.FetchResult{transientPage(), transientPage()},
		nil, nil)

	outcome, err := f.runner.Run(context.Background(), inProgressTarget(5), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome != crawl.OutcomeFailed {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeFailed)
	}
	if len(f.targets.failErrors) != 1 {
		t.Fatalf("failErrors = %v, want one entry", f.targets.failErrors)
	}
	if !strings.Contains(f.targets.failErrors[0], "page 2") {
		t.Errorf("last_error = %q, want mention of page 2", f.targets.failErrors[0])
	}
	if len(f.targets.checkpoints) != 0 {
		t.Errorf("checkpoints = %v, want none", f.targets.checkpoints)
	}
}

func TestRunner_RecoversFromSingleTransientFailure(t *testing.T) {
	f := newFixture(t,
		[]*domain.FetchResult{transientPage(), okPage("p2")},
		map[string][]*domain.Listing{
			"p2": {acceptedListing("Drain Kings")},
		}, nil)

	outcome, err := f.runner.Run(context.Background(), inProgressTarget(2), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome != crawl.OutcomeDone {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeDone)
	}
	// Page 1 was skipped, page 2 landed.
	if len(f.targets.checkpoints) != 1 || f.targets.checkpoints[0] != 2 {
		t.Errorf("checkpoints = %v, want [2]", f.targets.checkpoints)
	}
	if len(f.targets.failErrors) != 0 {
		t.Errorf("failErrors = %v, want none", f.targets.failErrors)
	}
}

func TestRunner_ParseFailureIsSoftFailure(t *testing.T) {
	f := newFixture(t,
		[]*domain.FetchResult{okPage("broken"), okPage("p2")},
		map[string][]*domain.Listing{
			"p2": {acceptedListing("Drain Kings")},
		},
		map[string]error{
			"broken": errors.New("no results container"),
		})

	outcome, err := f.runner.Run(context.Background(), inProgressTarget(2), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome != crawl.OutcomeDone {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeDone)
	}
	if len(f.targets.checkpoints) != 1 || f.targets.checkpoints[0] != 2 {
		t.Errorf("checkpoints = %v, want [2]", f.targets.checkpoints)
	}
}

func TestRunner_StopsBetweenPages(t *testing.T) {
	f := newFixture(t,
		[]*domain.FetchResult{okPage("p1")},
		map[string][]*domain.Listing{
			"p1": {acceptedListing("Joes Plumbing")},
		}, nil)

	polls := 0
	stop := func() bool {
		polls++
		return polls > 1
	}

	outcome, err := f.runner.Run(context.Background(), inProgressTarget(3), stop)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome != crawl.OutcomeStopped {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeStopped)
	}
	if len(f.fetcher.urls) != 1 {
		t.Errorf("fetched %d pages, want 1 (stop observed before page 2)", len(f.fetcher.urls))
	}
	if len(f.targets.checkpoints) != 1 || f.targets.checkpoints[0] != 1 {
		t.Errorf("checkpoints = %v, want [1]", f.targets.checkpoints)
	}
	if len(f.targets.requeueNotes) != 1 || f.targets.requeueNotes[0] != domain.NoteShutdownRequeued {
		t.Errorf("requeue notes = %v, want [%s]", f.targets.requeueNotes, domain.NoteShutdownRequeued)
	}
	if len(f.journal.requeues) != 1 || f.journal.requeues[0] != "shutdown" {
		t.Errorf("journal requeues = %v, want [shutdown]", f.journal.requeues)
	}
}

func TestRunner_StopBeforeFirstPageFetchesNothing(t *testing.T) {
	f := newFixture(t, nil, nil, nil)

	outcome, err := f.runner.Run(context.Background(), inProgressTarget(3), func() bool { return true })
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome != crawl.OutcomeStopped {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeStopped)
	}
	if len(f.fetcher.urls) != 0 {
		t.Errorf("fetched %d pages, want 0", len(f.fetcher.urls))
	}
}

func TestRunner_MaxPagesOverrideShrinksBudget(t *testing.T) {
	f := newFixture(t,
		[]*domain.FetchResult{okPage("p1")},
		map[string][]*domain.Listing{
			"p1": {acceptedListing("Joes Plumbing")},
		}, nil)

	runner, err := crawl.NewRunner(crawl.Deps{
		Targets:   f.targets,
		Companies: f.companies,
		Rejects:   f.rejects,
		Source:    &scriptedSource{pages: map[string][]*domain.Listing{"p1": {acceptedListing("Joes Plumbing")}}},
		Fetcher:   f.fetcher,
		Filter:    filter.New(&filterconfig.Config{MinScore: 50, EquipmentOnlyLabel: "Equipment & Services"}, &filter.Lists{Allowlist: map[string]bool{"plumbers": true}, Blocklist: map[string]bool{}, DenyDomains: map[string]bool{}}),
		Monitor:   f.monitor,
		Logger:    logger.NewNoOp(),
	}, crawl.Config{MaxPagesOverride: 1, CooldownBase: time.Millisecond, CooldownCap: time.Millisecond})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	outcome, runErr := runner.Run(context.Background(), inProgressTarget(3), nil)
	if runErr != nil {
		t.Fatalf("Run() error = %v", runErr)
	}
	if outcome != crawl.OutcomeDone {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeDone)
	}
	if len(f.fetcher.urls) != 1 {
		t.Errorf("fetched %d pages, want 1", len(f.fetcher.urls))
	}
}

func TestRunner_CheckpointFailureLeavesClaim(t *testing.T) {
	f := newFixture(t,
		[]*domain.FetchResult{okPage("p1")},
		map[string][]*domain.Listing{
			"p1": {acceptedListing("Joes Plumbing")},
		}, nil)
	f.targets.checkpointErr = errors.New("connection reset")

	outcome, err := f.runner.Run(context.Background(), inProgressTarget(3), nil)
	if err == nil {
		t.Fatal("Run() error = nil, want checkpoint failure")
	}
	if outcome != crawl.OutcomeError {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeError)
	}
	// No state transition happened; orphan recovery will reclaim it.
	if len(f.targets.doneNotes)+len(f.targets.failErrors)+len(f.targets.requeueNotes) != 0 {
		t.Errorf("unexpected state transitions: done=%v failed=%v requeued=%v",
			f.targets.doneNotes, f.targets.failErrors, f.targets.requeueNotes)
	}
}

func TestRunner_UpsertFailureAbortsCheckpoint(t *testing.T) {
	f := newFixture(t,
		[]*domain.FetchResult{okPage("p1")},
		map[string][]*domain.Listing{
			"p1": {acceptedListing("Joes Plumbing")},
		}, nil)
	f.companies.err = errors.New("deadlock detected")

	outcome, err := f.runner.Run(context.Background(), inProgressTarget(3), nil)
	if err == nil {
		t.Fatal("Run() error = nil, want upsert failure")
	}
	if outcome != crawl.OutcomeError {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeError)
	}
	if len(f.targets.checkpoints) != 0 {
		t.Errorf("checkpoints = %v, want none", f.targets.checkpoints)
	}
}

type fakeMirror struct {
	indexed []string
	err     error
}

func (f *fakeMirror) IndexAccepted(_ context.Context, _ *domain.Target, listing *domain.Listing, _ domain.FilterOutcome) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, listing.Name)
	return nil
}

// mirrorRunner rebuilds the fixture's runner with a mirror attached.
func mirrorRunner(t *testing.T, f *fixture, pages map[string][]*domain.Listing, mirror crawl.Mirror) *crawl.Runner {
	t.Helper()

	runner, err := crawl.NewRunner(crawl.Deps{
		Targets:   f.targets,
		Companies: f.companies,
		Rejects:   f.rejects,
		Source:    &scriptedSource{pages: pages},
		Fetcher:   f.fetcher,
		Filter: filter.New(&filterconfig.Config{
			MinScore:           50,
			EquipmentOnlyLabel: "Equipment & Services",
		}, &filter.Lists{
			Allowlist:   map[string]bool{"plumbers": true},
			Blocklist:   map[string]bool{},
			DenyDomains: map[string]bool{},
		}),
		Monitor: f.monitor,
		Logger:  logger.NewNoOp(),
		Mirror:  mirror,
	}, crawl.Config{CooldownBase: time.Millisecond, CooldownCap: 2 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	return runner
}

func TestRunner_MirrorsAcceptedListings(t *testing.T) {
	pages := map[string][]*domain.Listing{
		"p1": {acceptedListing("Joes Plumbing"), rejectedListing("No Site Plumbing")},
	}
	f := newFixture(t, []*domain.FetchResult{okPage("p1")}, pages, nil)
	mirror := &fakeMirror{}
	runner := mirrorRunner(t, f, pages, mirror)

	if _, err := runner.Run(context.Background(), inProgressTarget(1), nil); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Only admitted listings reach the mirror.
	if len(mirror.indexed) != 1 || mirror.indexed[0] != "Joes Plumbing" {
		t.Errorf("mirrored = %v, want [Joes Plumbing]", mirror.indexed)
	}
}

func TestRunner_MirrorFailureDoesNotFailPage(t *testing.T) {
	pages := map[string][]*domain.Listing{
		"p1": {acceptedListing("Joes Plumbing")},
	}
	f := newFixture(t, []*domain.FetchResult{okPage("p1")}, pages, nil)
	runner := mirrorRunner(t, f, pages, &fakeMirror{err: errors.New("cluster unreachable")})

	outcome, err := runner.Run(context.Background(), inProgressTarget(1), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if outcome != crawl.OutcomeDone {
		t.Errorf("outcome = %q, want %q", outcome, crawl.OutcomeDone)
	}
	if len(f.targets.checkpoints) != 1 {
		t.Errorf("checkpoints = %v, want [1]", f.targets.checkpoints)
	}
}

func TestNewRunner_RequiresDependencies(t *testing.T) {
	_, err := crawl.NewRunner(crawl.Deps{}, crawl.Config{})
	if err == nil {
		t.Fatal("NewRunner() with empty deps succeeded, want error")
	}

	f := newFixture(t, nil, nil, nil)
	deps := crawl.Deps{
		Targets:   f.targets,
		Companies: f.companies,
		Rejects:   f.rejects,
		Source:    &scriptedSource{},
		Fetcher:   f.fetcher,
		Filter:    nil,
		Monitor:   f.monitor,
		Logger:    logger.NewNoOp(),
	}
	if _, err := crawl.NewRunner(deps, crawl.Config{}); err == nil {
		t.Fatal("NewRunner() without filter succeeded, want error")
	}
}
