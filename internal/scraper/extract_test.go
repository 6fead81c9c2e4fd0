package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jimezsa/indeedhub/internal/browser"
	"github.com/jimezsa/indeedhub/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStale = errors.New("element is not attached to the DOM")

type fakeCard struct {
	title       string
	company     string
	href        string
	description string
	noAnchor    bool
	titleErr    bool
	noCompany   bool
}

// fakeSession re-renders the card list on every click, so handles taken
// before a click go stale the way they do on the live site.
type fakeSession struct {
	cards      []fakeCard
	content    string
	navErr     error
	generation int
	panel      string

	navigated     []string
	queryAllCalls int
	waits         []time.Duration
	closed        bool
}

func newFakeSession(cards ...fakeCard) *fakeSession {
	return &fakeSession{cards: cards, content: "<html><title>Jobs</title><body></body></html>"}
}

func (s *fakeSession) Navigate(_ context.Context, url string, _ time.Duration) error {
	s.navigated = append(s.navigated, url)
	return s.navErr
}

func (s *fakeSession) Content() (string, error) {
	return s.content, nil
}

func (s *fakeSession) WaitForSelector(_ context.Context, selector string, timeout time.Duration) error {
	if selector == cardSelector && len(s.cards) == 0 {
		return fmt.Errorf("%w: %s not attached after %s", browser.ErrTimeout, selector, timeout)
	}
	return nil
}

func (s *fakeSession) QueryAll(selector string) ([]browser.Element, error) {
	s.queryAllCalls++
	if selector != cardSelector {
		return nil, nil
	}
	out := make([]browser.Element, len(s.cards))
	for i := range s.cards {
		out[i] = &fakeElement{session: s, gen: s.generation, card: &s.cards[i]}
	}
	return out, nil
}

func (s *fakeSession) QuerySingle(selector string) (browser.Element, error) {
	if selector == descriptionSelector && s.panel != "" {
		return &fakeElement{session: s, gen: s.generation, text: s.panel}, nil
	}
	return nil, nil
}

func (s *fakeSession) Wait(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	if d <= 10*time.Millisecond {
		time.Sleep(d)
	}
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeElement struct {
	session *fakeSession
	gen     int
	card    *fakeCard
	text    string
}

func (e *fakeElement) stale() error {
	if e.gen != e.session.generation {
		return errStale
	}
	return nil
}

func (e *fakeElement) child(text string) *fakeElement {
	return &fakeElement{session: e.session, gen: e.gen, text: text}
}

func (e *fakeElement) QuerySingle(selector string) (browser.Element, error) {
	if err := e.stale(); err != nil {
		return nil, err
	}
	if e.card == nil {
		return nil, nil
	}
	switch selector {
	case titleSelector:
		if e.card.titleErr {
			return nil, errors.New("title lookup failed")
		}
		return e.child(e.card.title), nil
	case companySelector:
		if e.card.noCompany {
			return nil, nil
		}
		return e.child(e.card.company), nil
	case linkSelector:
		if e.card.noAnchor {
			return nil, nil
		}
		return e.child(e.card.href), nil
	}
	return nil, nil
}

func (e *fakeElement) Text() (string, error) {
	if err := e.stale(); err != nil {
		return "", err
	}
	return e.text, nil
}

func (e *fakeElement) Attribute(name string) (string, error) {
	if err := e.stale(); err != nil {
		return "", err
	}
	if name == "href" {
		return e.text, nil
	}
	return "", nil
}

func (e *fakeElement) Click() error {
	if err := e.stale(); err != nil {
		return err
	}
	e.session.panel = e.card.description
	e.session.generation++
	return nil
}

func makeCards(n int) []fakeCard {
	cards := make([]fakeCard, n)
	for i := range cards {
		cards[i] = fakeCard{
			title:       fmt.Sprintf("Developer %d", i),
			company:     fmt.Sprintf("Company %d", i),
			href:        fmt.Sprintf("/rc/clk?jk=%d", i),
			description: fmt.Sprintf("Description for job %d.\nBuild things.", i),
		}
	}
	return cards
}

func newTestIndeed(session *fakeSession, opts ...Option) *Indeed {
	opener := browser.OpenerFunc(func(context.Context) (browser.Session, error) {
		return session, nil
	})
	cfg := models.ScraperConfig{
		Origin:       DefaultOrigin,
		BlockCheck:   true,
		BlockMarkers: []string{"hcaptcha", "cloudflare"},
	}
	return NewIndeed(opener, cfg, opts...)
}

func searchParams() models.SearchParams {
	return models.SearchParams{Query: "web developer", Region: "British Columbia"}
}

func assertRecordInvariants(t *testing.T, jobs []models.Job) {
	t.Helper()
	for _, job := range jobs {
		assert.NotEmpty(t, job.Title)
		assert.NotEmpty(t, job.Company)
		if job.Link != models.LinkUnavailable {
			assert.True(t, strings.HasPrefix(job.Link, DefaultOrigin+"/"), "link %q", job.Link)
		}
		assert.NotEmpty(t, job.Description)
	}
}

func TestRunNoCardsReportsNoResults(t *testing.T) {
	session := newFakeSession()
	res := newTestIndeed(session).Run(context.Background(), searchParams())

	assert.Empty(t, res.Jobs)
	assert.NotNil(t, res.Jobs)
	assert.ErrorIs(t, res.Err, ErrNoCards)
	assert.ErrorIs(t, res.Err, browser.ErrTimeout)
	assert.True(t, session.closed)
}

func TestRunBlockedStopsBeforeQueryingCards(t *testing.T) {
	session := newFakeSession(makeCards(3)...)
	session.content = `<html><body><div class="h-captcha" data-sitekey="x"></div><script src="https://hcaptcha.com/1/api.js"></script></body></html>`

	res := newTestIndeed(session).Run(context.Background(), searchParams())

	assert.Empty(t, res.Jobs)
	assert.ErrorIs(t, res.Err, ErrBlocked)
	assert.Zero(t, session.queryAllCalls)
	assert.True(t, session.closed)
}

func TestRunBlockCheckDisabled(t *testing.T) {
	session := newFakeSession(makeCards(2)...)
	session.content = "<html><body>protected by cloudflare</body></html>"

	indeed := newTestIndeed(session)
	indeed.cfg.BlockCheck = false
	res := indeed.Run(context.Background(), searchParams())

	require.NoError(t, res.Err)
	assert.Len(t, res.Jobs, 2)
}

func TestRunCapsAtFifteenInPageOrder(t *testing.T) {
	session := newFakeSession(makeCards(20)...)
	var accepted []int
	observer := ObserverFunc(func(index int, _ models.Job) {
		accepted = append(accepted, index)
	})

	res := newTestIndeed(session, WithObserver(observer)).Run(context.Background(), searchParams())

	require.NoError(t, res.Err)
	require.Len(t, res.Jobs, 15)
	for i, job := range res.Jobs {
		assert.Equal(t, fmt.Sprintf("Developer %d", i), job.Title)
		assert.Equal(t, fmt.Sprintf("Company %d", i), job.Company)
		assert.Equal(t, fmt.Sprintf("%s/rc/clk?jk=%d", DefaultOrigin, i), job.Link)
		assert.Equal(t, fmt.Sprintf("Description for job %d.\nBuild things.", i), job.Description)
	}
	assert.Len(t, accepted, 15)
	assert.Empty(t, res.Faults)
	assertRecordInvariants(t, res.Jobs)

	require.Len(t, session.navigated, 1)
	assert.Equal(t, "https://ca.indeed.com/jobs?q=web+developer&l=British+Columbia", session.navigated[0])
	// one count query plus one fresh query per card
	assert.Equal(t, 16, session.queryAllCalls)
	assert.True(t, session.closed)
}

func TestRunSkipsFailingCard(t *testing.T) {
	cards := makeCards(5)
	cards[2].titleErr = true
	session := newFakeSession(cards...)

	res := newTestIndeed(session).Run(context.Background(), searchParams())

	require.NoError(t, res.Err)
	require.Len(t, res.Jobs, 4)
	for _, job := range res.Jobs {
		assert.NotEqual(t, "Developer 2", job.Title)
	}
	require.Len(t, res.Faults, 1)
	assert.Equal(t, 2, res.Faults[0].Index)
	assert.Equal(t, StageTitle, res.Faults[0].Stage)
}

func TestRunMissingCompanyDropsCard(t *testing.T) {
	cards := makeCards(3)
	cards[0].noCompany = true
	cards[1].company = "   "
	session := newFakeSession(cards...)

	res := newTestIndeed(session).Run(context.Background(), searchParams())

	require.NoError(t, res.Err)
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, "Developer 2", res.Jobs[0].Title)
	require.Len(t, res.Faults, 2)
	assert.ErrorIs(t, &res.Faults[0], errMissingElement)
	assert.ErrorIs(t, &res.Faults[1], errEmptyText)
}

func TestRunCardWithoutAnchor(t *testing.T) {
	cards := makeCards(2)
	cards[1].noAnchor = true
	session := newFakeSession(cards...)

	res := newTestIndeed(session).Run(context.Background(), searchParams())

	require.NoError(t, res.Err)
	require.Len(t, res.Jobs, 2)
	assert.Equal(t, models.LinkUnavailable, res.Jobs[1].Link)
	assert.Equal(t, "Developer 1", res.Jobs[1].Title)
	assert.Equal(t, "Company 1", res.Jobs[1].Company)
	assert.Equal(t, "Description for job 1.\nBuild things.", res.Jobs[1].Description)
}

func TestRunResolvesLinksAgainstOrigin(t *testing.T) {
	cards := makeCards(3)
	cards[0].href = "https://ca.indeed.com/viewjob?jk=abc"
	cards[1].href = "https://careers.example.com/apply/1"
	cards[2].href = "   "
	session := newFakeSession(cards...)

	res := newTestIndeed(session).Run(context.Background(), searchParams())

	require.NoError(t, res.Err)
	require.Len(t, res.Jobs, 3)
	assert.Equal(t, "https://ca.indeed.com/viewjob?jk=abc", res.Jobs[0].Link)
	assert.Equal(t, models.LinkUnavailable, res.Jobs[1].Link)
	assert.Equal(t, models.LinkUnavailable, res.Jobs[2].Link)
	assertRecordInvariants(t, res.Jobs)
}

func TestRunEmptyDescriptionUsesSentinel(t *testing.T) {
	cards := makeCards(2)
	cards[0].description = ""
	cards[1].description = "  \n "
	session := newFakeSession(cards...)

	res := newTestIndeed(session).Run(context.Background(), searchParams())

	require.NoError(t, res.Err)
	require.Len(t, res.Jobs, 2)
	assert.Equal(t, models.DescriptionNotFound, res.Jobs[0].Description)
	assert.Equal(t, models.DescriptionNotFound, res.Jobs[1].Description)
}

func TestRunUsesFixedDelayByDefault(t *testing.T) {
	session := newFakeSession(makeCards(3)...)

	res := newTestIndeed(session).Run(context.Background(), searchParams())

	require.NoError(t, res.Err)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second}, session.waits)
}

func TestRunPollForContent(t *testing.T) {
	cards := makeCards(3)
	cards[1].description = cards[0].description
	session := newFakeSession(cards...)
	waiter := PollForContent{Selector: descriptionSelector, Timeout: 20 * time.Millisecond, Interval: time.Millisecond}

	res := newTestIndeed(session, WithDetailWaiter(waiter)).Run(context.Background(), searchParams())

	require.NoError(t, res.Err)
	require.Len(t, res.Jobs, 3)
	assert.Equal(t, cards[0].description, res.Jobs[0].Description)
	// card 1 repeats card 0's text: the poll times out but the panel is still read
	assert.Equal(t, cards[0].description, res.Jobs[1].Description)
	assert.Equal(t, cards[2].description, res.Jobs[2].Description)
	assert.Empty(t, res.Faults)
}

func TestRunPollTimeoutWithEmptyPanelUsesSentinel(t *testing.T) {
	cards := makeCards(2)
	cards[1].description = ""
	session := newFakeSession(cards...)
	waiter := PollForContent{Selector: descriptionSelector, Timeout: 10 * time.Millisecond, Interval: time.Millisecond}

	res := newTestIndeed(session, WithDetailWaiter(waiter)).Run(context.Background(), searchParams())

	require.NoError(t, res.Err)
	require.Len(t, res.Jobs, 2)
	assert.Equal(t, cards[0].description, res.Jobs[0].Description)
	assert.Equal(t, models.DescriptionNotFound, res.Jobs[1].Description)
}

func TestRunNormalizesDescriptionLineEndings(t *testing.T) {
	cards := makeCards(1)
	cards[0].description = "line1\r\nline2\rline3\r\n"
	session := newFakeSession(cards...)

	res := newTestIndeed(session).Run(context.Background(), searchParams())

	require.NoError(t, res.Err)
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, "line1\nline2\nline3", res.Jobs[0].Description)
}

func TestRunNavigationFailure(t *testing.T) {
	session := newFakeSession(makeCards(3)...)
	session.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	res := newTestIndeed(session).Run(context.Background(), searchParams())

	assert.Empty(t, res.Jobs)
	assert.ErrorIs(t, res.Err, ErrNavigation)
	assert.Contains(t, res.Err.Error(), "ERR_NAME_NOT_RESOLVED")
	assert.Zero(t, session.queryAllCalls)
	assert.True(t, session.closed)
}

func TestRunLaunchFailure(t *testing.T) {
	opener := browser.OpenerFunc(func(context.Context) (browser.Session, error) {
		return nil, errors.New("executable doesn't exist")
	})

	jobs, err := NewIndeed(opener, models.ScraperConfig{}).Search(context.Background(), searchParams())

	assert.Empty(t, jobs)
	assert.ErrorIs(t, err, ErrNavigation)
}

func TestRunRespectsLimit(t *testing.T) {
	session := newFakeSession(makeCards(4)...)
	params := searchParams()
	params.Limit = 2

	res := newTestIndeed(session).Run(context.Background(), params)

	require.NoError(t, res.Err)
	assert.Len(t, res.Jobs, 2)
}

func TestRunLimitCannotExceedFifteen(t *testing.T) {
	session := newFakeSession(makeCards(20)...)
	params := searchParams()
	params.Limit = 50

	res := newTestIndeed(session).Run(context.Background(), params)

	require.NoError(t, res.Err)
	assert.Len(t, res.Jobs, DefaultMaxResults)
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	session := newFakeSession(makeCards(5)...)
	ctx, cancel := context.WithCancel(context.Background())
	observer := ObserverFunc(func(index int, _ models.Job) {
		if index == 1 {
			cancel()
		}
	})

	res := newTestIndeed(session, WithObserver(observer)).Run(ctx, searchParams())

	assert.Len(t, res.Jobs, 2)
	assert.True(t, session.closed)
}

func TestNewDetailWaiter(t *testing.T) {
	w, err := NewDetailWaiter("", 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, FixedDelay{Delay: 2 * time.Second}, w)

	w, err = NewDetailWaiter("POLL", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, PollForContent{Selector: descriptionSelector, Timeout: 5 * time.Second}, w)

	_, err = NewDetailWaiter("spin", time.Second)
	assert.Error(t, err)
}
