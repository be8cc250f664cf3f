package fetch

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *stubFetcher) Name() string { return s.name }
func (s *stubFetcher) FetchText(_ context.Context, _ string) (string, error) {
	s.calls++
	return s.text, s.err
}

func longText() string {
	return strings.Repeat("은혜교회 연락처 안내 ", 20)
}

func TestChain_FirstUsableWins(t *testing.T) {
	t.Parallel()

	first := &stubFetcher{name: "static", text: longText()}
	second := &stubFetcher{name: "browser", text: "unreached"}

	c := NewChain(first, second)
	text, err := c.FetchText(context.Background(), "https://a.kr")
	require.NoError(t, err)
	assert.Equal(t, longText(), text)
	assert.Zero(t, second.calls, "later fetchers must not run once one succeeds")
}

func TestChain_FallsBackOnError(t *testing.T) {
	t.Parallel()

	first := &stubFetcher{name: "static", err: eris.New("blocked")}
	second := &stubFetcher{name: "browser", text: longText()}

	c := NewChain(first, second)
	text, err := c.FetchText(context.Background(), "https://a.kr")
	require.NoError(t, err)
	assert.Equal(t, longText(), text)
	assert.Equal(t, 1, first.calls)
}

func TestChain_FallsBackOnThinPage(t *testing.T) {
	t.Parallel()

	first := &stubFetcher{name: "static", text: "빈 껍데기"}
	second := &stubFetcher{name: "browser", text: longText()}

	c := NewChain(first, second)
	text, err := c.FetchText(context.Background(), "https://a.kr")
	require.NoError(t, err)
	assert.Equal(t, longText(), text)
}

func TestChain_AllFail(t *testing.T) {
	t.Parallel()

	c := NewChain(
		&stubFetcher{name: "static", err: eris.New("blocked")},
		&stubFetcher{name: "browser", text: "short"},
	)
	_, err := c.FetchText(context.Background(), "https://a.kr")
	require.Error(t, err)

	var fErr *FetchError
	assert.ErrorAs(t, err, &fErr)
}

func TestChain_Empty(t *testing.T) {
	t.Parallel()

	_, err := NewChain().FetchText(context.Background(), "https://a.kr")
	require.Error(t, err)
}

func TestChain_ContextCanceled(t *testing.T) {
	t.Parallel()

	first := &stubFetcher{name: "static", text: longText()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChain(first).FetchText(ctx, "https://a.kr")
	require.Error(t, err)
	assert.Zero(t, first.calls)
}

func TestHTMLToText(t *testing.T) {
	t.Parallel()

	text, err := htmlToText(`<html><body>
		<script>bad()</script>
		<div>대표전화   02-1234-5678</div>
		<iframe src="x"></iframe>
		<div>서울시 강남구</div>
	</body></html>`)
	require.NoError(t, err)

	assert.Contains(t, text, "대표전화 02-1234-5678")
	assert.Contains(t, text, "서울시 강남구")
	assert.NotContains(t, text, "bad()")
}
