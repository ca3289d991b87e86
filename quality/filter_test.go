package quality

import (
	"testing"

	"github.com/bulkmart/go-aggregator/types"
	"github.com/stretchr/testify/suite"
)

type FilterSuite struct {
	suite.Suite
	policy Policy
}

func (suite *FilterSuite) SetupSuite() {
	suite.policy = Policy{
		BannedTerms:     []string{"custom order", "repair service"},
		GoodMinAttrs:    10,
		PartialMinAttrs: 1,
	}
}

func listing(platform types.Platform, url, title string) *types.ExternalListing {
	return &types.ExternalListing{Platform: platform, URL: url, Title: title}
}

func (suite *FilterSuite) Test_01_ExcludeBanned() {
	items := []*types.ExternalListing{
		listing(types.PlatformAlibaba, "https://a.com/1", "Brick Making Machine"),
		listing(types.PlatformAlibaba, "https://a.com/2", "Custom Order Only - machine parts"),
		listing(types.PlatformIndiamart, "https://b.com/3", "Machine Repair Service"),
	}
	out := ExcludeBanned(items, suite.policy.BannedTerms)
	suite.Assert().Equal(1, len(out))
	suite.Assert().Equal("https://a.com/1", out[0].URL)
}

func (suite *FilterSuite) Test_02_DedupKeepsFirst() {
	first := listing(types.PlatformAlibaba, "https://a.com/p/1?spm=x", "Machine A")
	dup := listing(types.PlatformAlibaba, "https://a.com/p/1#frag", "Machine A (dup)")
	other := listing(types.PlatformIndiamart, "https://a.com/p/1", "Machine A")

	out := Dedup([]*types.ExternalListing{first, dup, other})
	suite.Assert().Equal(2, len(out))
	suite.Assert().Equal("Machine A", out[0].Title)
	// same url on a different platform is a different listing
	suite.Assert().Equal(types.PlatformIndiamart, out[1].Platform)
	// keys were normalized in place
	suite.Assert().Equal("https://a.com/p/1", out[0].URL)
}

func (suite *FilterSuite) Test_03_BoundsNilSemantics() {
	moq := func(v int) *int { return &v }
	withMoq := listing(types.PlatformAlibaba, "https://a.com/1", "A")
	withMoq.MoqValue = moq(40)
	noMoq := listing(types.PlatformAlibaba, "https://a.com/2", "B")

	min := 50
	out := ApplyBounds([]*types.ExternalListing{withMoq, noMoq}, types.QueryFilters{MinMoq: &min})
	// moq=40 excluded by minMoq=50; unknown moq included
	suite.Assert().Equal(1, len(out))
	suite.Assert().Equal("https://a.com/2", out[0].URL)

	max := 50
	out = ApplyBounds([]*types.ExternalListing{withMoq, noMoq}, types.QueryFilters{MaxMoq: &max})
	// moq=40 passes maxMoq=50; unknown moq still included
	suite.Assert().Equal(2, len(out))
}

func (suite *FilterSuite) Test_04_SortStable() {
	items := []*types.ExternalListing{
		listing(types.PlatformAlibaba, "https://a.com/2", "zeta machine"),
		listing(types.PlatformAlibaba, "https://a.com/1", "Alpha Machine"),
		listing(types.PlatformAlibaba, "https://a.com/0", "alpha machine"),
	}
	SortListings(items)
	suite.Assert().Equal("https://a.com/0", items[0].URL)
	suite.Assert().Equal("https://a.com/1", items[1].URL)
	suite.Assert().Equal("https://a.com/2", items[2].URL)
}

func (suite *FilterSuite) Test_05_FilterBatchIdempotent() {
	items := []*types.ExternalListing{
		listing(types.PlatformAlibaba, "https://a.com/p/2?x=1", "Beta Machine"),
		listing(types.PlatformAlibaba, "https://a.com/p/1", "Alpha Machine"),
		listing(types.PlatformAlibaba, "https://a.com/p/2", "Beta Machine Dup"),
		listing(types.PlatformIndiamart, "https://c.com/p/9", "Custom order only listing"),
	}
	once := FilterBatch(items, types.QueryFilters{}, suite.policy)
	twice := FilterBatch(once, types.QueryFilters{}, suite.policy)

	suite.Assert().Equal(len(once), len(twice))
	for i := range once {
		suite.Assert().Equal(once[i].Key(), twice[i].Key())
	}
}

func (suite *FilterSuite) Test_06_Classify() {
	l := listing(types.PlatformAlibaba, "https://a.com/1", "A")
	suite.Assert().Equal(types.QualityBad, Classify(l, suite.policy))

	l.Attributes = map[string]string{"voltage": "220V"}
	suite.Assert().Equal(types.QualityPartial, Classify(l, suite.policy))

	l.Attributes = map[string]string{}
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		l.Attributes[k] = k
	}
	suite.Assert().Equal(types.QualityGood, Classify(l, suite.policy))
}

func TestFilterSuite(t *testing.T) {
	suite.Run(t, new(FilterSuite))
}
