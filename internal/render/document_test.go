package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpr-plan-engine/internal/domain"
)

const testPage = `<html><body>
<form>
  <select name="insuranceReason">
    <option value="all">Any</option>
    <option value="0">Visa</option>
    <option value="1">Temporary</option>
    <option value="2">Supplemental</option>
  </select>
  <input type="radio" name="coverageTier" value="basic">
  <input type="radio" name="coverageTier" value="comprehensive">
  <input type="text" name="preExisting" value="">
  <input type="checkbox" dpr-hospital-accommodation>
</form>
<button dpr-compare-button disabled>Compare</button>
<button dpr-compare-clear style="display: none;">Clear</button>
<div id="plans">
  <div dpr-results-plan="LINK 2" dpr-results-injected>promo</div>
  <div dpr-results-plan="LINK 1" style="color: red; display: flex;">
    <input type="checkbox" dpr-compare-checkbox>
    <span dpr-results-price>0</span>
    <a dpr-compare-remove>remove</a>
  </div>
  <div dpr-results-plan="ZONE 2"><input type="checkbox" dpr-compare-checkbox><span dpr-results-price>0</span></div>
  <div dpr-results-plan="LINK 2"><input type="checkbox" dpr-compare-checkbox><span dpr-results-price>0</span></div>
</div>
</body></html>`

func parseTestPage(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseDocumentString(testPage)
	require.NoError(t, err)
	return doc
}

func TestDocument_Elements(t *testing.T) {
	doc := parseTestPage(t)
	els := doc.Elements()

	require.Len(t, els, 4)
	assert.True(t, els[0].Injected)
	assert.Equal(t, ids("LINK 1", "ZONE 2", "LINK 2"), PlanOrder(Managed(els)))
}

func TestDocument_RenderLimit(t *testing.T) {
	doc := parseTestPage(t)
	newTestRenderer().Render(doc, domain.IncludedSet(domain.SourceSetLogic, ids("LINK 1", "LINK 2")), domain.DisplayLimit)

	els := doc.Elements()
	assert.Equal(t, ids("LINK 2", "LINK 1", "LINK 2", "ZONE 2"), PlanOrder(els))
	assert.True(t, els[0].Injected, "injected element stays in place")
	assert.False(t, els[1].Hidden)
	assert.False(t, els[2].Hidden)
	assert.True(t, els[3].Hidden)

	page, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, page, `style="color: red;"`, "display reset keeps other declarations")
	assert.Contains(t, page, `dpr-results-plan="ZONE 2" style="display: none;"`)
}

func TestDocument_RenderHideOnlyThenShowAll(t *testing.T) {
	doc := parseTestPage(t)
	r := newTestRenderer()

	r.Render(doc, domain.IncludedSet(domain.SourceSetLogic, ids("LINK 1", "LINK 2")), domain.DisplayHideOnly)
	assert.Equal(t, ids("LINK 1", "ZONE 2", "LINK 2"), PlanOrder(Managed(doc.Elements())))

	r.ShowEverything(doc)
	for _, el := range doc.Elements() {
		assert.False(t, el.Hidden, string(el.Plan))
	}
}

func TestDocument_NoContainer(t *testing.T) {
	doc, err := ParseDocumentString(`<div><p dpr-results-plan="LINK 1"></p></div><div><p dpr-results-plan="LINK 2"></p></div>`)
	require.NoError(t, err)

	patch := newTestRenderer().Render(doc, domain.IncludedSet(domain.SourceSetLogic, ids("LINK 2")), domain.DisplayLimit)
	assert.True(t, patch.Empty())
	assert.Equal(t, ids("LINK 1", "LINK 2"), PlanOrder(doc.Elements()))
	for _, el := range doc.Elements() {
		assert.False(t, el.Hidden)
	}
}

func TestDocument_FormControls(t *testing.T) {
	doc := parseTestPage(t)

	var changes []string
	doc.OnChange(func(name, value string) { changes = append(changes, name+"="+value) })

	doc.SetValue(domain.FieldInsuranceReason, "2")
	doc.SetValue(domain.FieldCoverageTier, "comprehensive")
	doc.SetValue(domain.FieldPreExisting, "no")

	assert.Equal(t, "2", doc.Value(domain.FieldInsuranceReason))
	assert.Equal(t, "comprehensive", doc.Value(domain.FieldCoverageTier))
	assert.Equal(t, "no", doc.Value(domain.FieldPreExisting))
	assert.Equal(t, "", doc.Value(domain.FieldPreExistingCoverage))
	assert.Len(t, changes, 3)

	assert.False(t, doc.Disabled())
	doc.SetDisabled(true)
	assert.True(t, doc.Disabled())
	doc.SetDisabled(false)
	assert.False(t, doc.Disabled())
}

func TestDocument_DisabledControlsIgnoreWrites(t *testing.T) {
	doc := parseTestPage(t)
	doc.SetValue(domain.FieldInsuranceReason, "0")

	var changes []string
	doc.OnChange(func(name, value string) { changes = append(changes, name+"="+value) })

	doc.SetDisabled(true)
	doc.SetValue(domain.FieldInsuranceReason, "1")
	assert.Equal(t, "0", doc.Value(domain.FieldInsuranceReason))
	assert.Empty(t, changes)

	doc.SetDisabled(false)
	doc.SetValue(domain.FieldInsuranceReason, "1")
	assert.Equal(t, "1", doc.Value(domain.FieldInsuranceReason))
	assert.Equal(t, []string{"insuranceReason=1"}, changes)
}

func TestDocument_Prices(t *testing.T) {
	doc := parseTestPage(t)
	doc.SetPrices(map[domain.PlanID]int64{"LINK 1": 120, "ZONE 2": 99})

	prices := doc.Prices()
	assert.Equal(t, "120", prices["LINK 1"])
	assert.Equal(t, "99", prices["ZONE 2"])
	assert.Equal(t, "0", prices["LINK 2"])
}

func TestDocument_ApplyComparison(t *testing.T) {
	doc := parseTestPage(t)
	doc.ApplyComparison(domain.ComparisonView{
		State:          domain.ComparisonActive,
		Plans:          ids("LINK 1"),
		CompareEnabled: true,
	})

	page, err := doc.HTML()
	require.NoError(t, err)
	assert.NotContains(t, page, `dpr-compare-button="" disabled`)
	assert.Contains(t, page, `dpr-compare-remove="" style="display: none;"`)
	assert.Contains(t, page, `dpr-compare-clear="">`)

	doc.SetHospitalAccommodation(true)
	assert.True(t, doc.HospitalAccommodation())
}
