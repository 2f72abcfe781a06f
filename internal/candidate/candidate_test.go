package candidate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinfe/internal/dict"
	"pinfe/internal/pinyin"
)

func wordsOf(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Word
	}
	return out
}

func sampleTrie() *dict.Trie {
	trie := dict.NewTrie()
	trie.Insert("ni", "你好", 1, []string{"hello"})
	trie.Insert("ni", "你", 1, []string{"you"})
	trie.Insert("ni", "逆", 2, []string{"inverse"})
	trie.Insert("li", "里", 1, []string{"inside"})
	trie.Insert("li", "力", 1, []string{"force", "power"})
	trie.Insert("li", "理", 2, []string{"reason"})
	trie.Insert("lin", "林", 1, []string{"forest"})
	trie.Insert("nin", "您", 1, []string{"you (polite)"})
	trie.Insert("hao", "好", 1, []string{"good"})
	return trie
}

func TestAssembleExactBeforeContinuations(t *testing.T) {
	got := Assemble(sampleTrie(), pinyin.Expand("li", nil), "", Options{})
	assert.Equal(t, []string{"里", "力", "理", "林"}, wordsOf(got))
}

func TestAssemblePrefixExample(t *testing.T) {
	got := Assemble(sampleTrie(), pinyin.Expand("ni", nil), "", Options{})
	assert.Equal(t, []string{"你好", "你", "逆", "您"}, wordsOf(got))
}

func TestAssembleNoDuplicatesAcrossFuzzyVariants(t *testing.T) {
	trie := sampleTrie()
	trie.Insert("li", "你", 3, nil)
	got := Assemble(trie, pinyin.Expand("ni", pinyin.DefaultRules()), "", Options{})

	seen := map[string]bool{}
	for _, c := range got {
		require.False(t, seen[c.Word], "duplicate %s", c.Word)
		seen[c.Word] = true
	}
	assert.Equal(t, "你好", got[0].Word)
	assert.False(t, got[0].Fuzzy)
	assert.Contains(t, wordsOf(got), "里")
}

func TestAssembleOriginalVariantOutranksFuzzy(t *testing.T) {
	trie := dict.NewTrie()
	trie.Insert("lan", "蓝", 2, nil)
	trie.Insert("nan", "南", 1, nil)
	got := Assemble(trie, pinyin.Expand("lan", pinyin.DefaultRules()), "", Options{})
	require.NotEmpty(t, got)
	assert.Equal(t, "蓝", got[0].Word)
	assert.False(t, got[0].Fuzzy)
	assert.Equal(t, "南", got[1].Word)
	assert.True(t, got[1].Fuzzy)
}

func TestAssembleFilter(t *testing.T) {
	got := Resolve(sampleTrie(), "liI", nil, Options{})
	assert.Equal(t, []string{"里"}, wordsOf(got))

	got = Resolve(sampleTrie(), "liF", nil, Options{})
	assert.Equal(t, []string{"力", "林"}, wordsOf(got))

	assert.Empty(t, Resolve(sampleTrie(), "liZz", nil, Options{}))
}

func TestAssembleComposesPhrase(t *testing.T) {
	trie := sampleTrie()
	got := Resolve(trie, "nihao", nil, Options{})
	require.Len(t, got, 1)
	assert.Equal(t, "你好好", got[0].Word)

	none := Resolve(trie, "nihao", nil, Options{NoCompose: true})
	assert.Empty(t, none)
}

func TestAssemblePrefixLimit(t *testing.T) {
	trie := dict.NewTrie()
	for i := 0; i < 30; i++ {
		trie.Insert(fmt.Sprintf("a%c", 'a'+i%26), fmt.Sprintf("w%d", i), 1, nil)
	}
	got := Assemble(trie, pinyin.Expand("a", nil), "", Options{PrefixLimit: 5})
	assert.Len(t, got, 5)
}

func TestAssembleFilterReachesPastLimit(t *testing.T) {
	trie := dict.NewTrie()
	for i := 0; i < 20; i++ {
		trie.Insert(fmt.Sprintf("y%c", 'a'+i), fmt.Sprintf("w%d", i), 1, nil)
	}
	trie.Insert("yu", "鱼", 1, []string{"fish"})

	assert.Len(t, Resolve(trie, "y", nil, Options{PrefixLimit: 5}), 5)
	got := Resolve(trie, "yF", nil, Options{PrefixLimit: 5})
	assert.Equal(t, []string{"鱼"}, wordsOf(got))
}

func TestResolveEmptyBuffer(t *testing.T) {
	assert.Empty(t, Resolve(sampleTrie(), "", nil, Options{}))
	assert.Empty(t, Resolve(sampleTrie(), "'", nil, Options{}))
	assert.Empty(t, Resolve(nil, "ni", nil, Options{}))
}

func makeCands(n int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i] = Candidate{Word: fmt.Sprintf("c%d", i)}
	}
	return out
}

func TestPagerBoundaries(t *testing.T) {
	p := NewPager(makeCands(23), 10)
	assert.Equal(t, 3, p.Pages())
	assert.False(t, p.Prev())
	assert.Equal(t, 0, p.Page())

	assert.True(t, p.Next())
	assert.True(t, p.Next())
	assert.Equal(t, 2, p.Page())
	assert.False(t, p.Next())
	assert.Equal(t, 2, p.Page())
	assert.Len(t, p.Current(), 3)

	c, ok := p.Select(2)
	require.True(t, ok)
	assert.Equal(t, "c22", c.Word)
	_, ok = p.Select(3)
	assert.False(t, ok)
	_, ok = p.Select(10)
	assert.False(t, ok)
}

func TestPagerEmpty(t *testing.T) {
	p := NewPager(nil, 10)
	assert.Zero(t, p.Pages())
	assert.Zero(t, p.Page())
	assert.False(t, p.Next())
	assert.False(t, p.Prev())
	assert.Nil(t, p.Current())
	_, ok := p.Selected()
	assert.False(t, ok)

	var nilPager *Pager
	assert.Zero(t, nilPager.Len())
	assert.False(t, nilPager.Next())
}

func TestPagerCursorFollowsPages(t *testing.T) {
	p := NewPager(makeCands(12), 5)
	assert.True(t, p.MoveCursor(5))
	assert.Equal(t, 1, p.Page())
	assert.False(t, p.MoveCursor(-6))
	assert.True(t, p.MoveCursor(-1))
	assert.Equal(t, 0, p.Page())
	c, _ := p.Selected()
	assert.Equal(t, "c4", c.Word)

	p.Next()
	assert.Equal(t, 5, p.Cursor())
}

func TestPagerSizeFallback(t *testing.T) {
	assert.Equal(t, DefaultPageSize, NewPager(nil, 0).Size())
	assert.Equal(t, DefaultPageSize, NewPager(nil, 12).Size())
	assert.Equal(t, 5, NewPager(nil, 5).Size())
}

func TestDigitSlot(t *testing.T) {
	for d, want := range map[byte]int{'1': 0, '2': 1, '9': 8, '0': 9} {
		got, ok := DigitSlot(d)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := DigitSlot('a')
	assert.False(t, ok)
}
