package pages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kuitang/orangehrm-e2e/internal/errs"
)

func newTestSearchPage(page *fakePage) *SearchPage {
	return NewSearchPage(page, nil, WithLogger(zap.NewNop()))
}

func TestEnterTerm_WaitsForFilter(t *testing.T) {
	page := newFakePage("chromium", 390)
	require.NoError(t, newTestSearchPage(page).EnterTerm("ADMIN"))
	assert.Equal(t, "fill:ADMIN,waitfn:ADMIN@7500", page.log.String(), "mobile stretches the expect timeout")
}

func TestTabToSearch_ReachesFieldFromBanner(t *testing.T) {
	page := newFakePage("webkit", 1280)
	page.focusAfterTabs = 2

	require.NoError(t, newTestSearchPage(page).TabToSearch())
	assert.Equal(t, "click,press:Tab,press:Tab", page.log.String())
}

func TestTabToSearch_GivesUp(t *testing.T) {
	page := newFakePage("chromium", 1280)

	err := newTestSearchPage(page).TabToSearch()
	assert.True(t, errs.Is(err, errs.Assertion))
	assert.Equal(t, maxTabs, page.tabs)
}
