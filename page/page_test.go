package page_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/xraph/catcher/page"
)

// sliceSource serves a sorted slice of strings, each item its own key.
type sliceSource struct {
	items []string
	scans int
}

func (s *sliceSource) Scan(_ context.Context, after string, limit int) ([]string, error) {
	s.scans++
	i := sort.SearchStrings(s.items, after)
	if i < len(s.items) && s.items[i] == after {
		i++
	}
	end := min(i+limit, len(s.items))
	return append([]string(nil), s.items[i:end]...), nil
}

func (s *sliceSource) Key(item string) string { return item }

func newSource(n int) *sliceSource {
	src := &sliceSource{}
	for i := 0; i < n; i++ {
		src.items = append(src.items, fmt.Sprintf("item-%03d", i))
	}
	return src
}

func newPager() *page.Pager { return page.NewPager("cursec_test", 0, 0) }

func TestListPartitionsCollection(t *testing.T) {
	ctx := context.Background()
	p := newPager()

	for _, tc := range []struct{ total, size int }{
		{0, 1}, {1, 1}, {3, 1}, {10, 3}, {10, 5}, {10, 10}, {10, 11}, {250, 100},
	} {
		t.Run(fmt.Sprintf("total=%d/size=%d", tc.total, tc.size), func(t *testing.T) {
			src := newSource(tc.total)
			var (
				seen  []string
				token string
				pages int
			)
			for {
				pg, err := page.List[string](ctx, p, src, "T1:orders", tc.size, token)
				if err != nil {
					t.Fatal(err)
				}
				if pg.Items == nil {
					t.Fatal("items must never be nil")
				}
				if len(pg.Items) > tc.size {
					t.Fatalf("page has %d items, size %d", len(pg.Items), tc.size)
				}
				seen = append(seen, pg.Items...)
				pages++
				if pg.NextToken == "" {
					break
				}
				token = pg.NextToken
				if pages > tc.total+1 {
					t.Fatal("pagination did not terminate")
				}
			}

			if strings.Join(seen, ",") != strings.Join(src.items, ",") {
				t.Fatalf("pages did not partition the collection:\n got %v\nwant %v", seen, src.items)
			}
		})
	}
}

func TestListExactMultipleHasNoTrailingToken(t *testing.T) {
	ctx := context.Background()
	p := newPager()
	src := newSource(3)

	first, err := page.List[string](ctx, p, src, "T1:orders", 1, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Items) != 1 || first.NextToken == "" {
		t.Fatalf("first page: %+v", first)
	}
	second, err := page.List[string](ctx, p, src, "T1:orders", 1, first.NextToken)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Items) != 1 || second.Items[0] == first.Items[0] || second.NextToken == "" {
		t.Fatalf("second page: %+v", second)
	}
	third, err := page.List[string](ctx, p, src, "T1:orders", 1, second.NextToken)
	if err != nil {
		t.Fatal(err)
	}
	if len(third.Items) != 1 || third.NextToken != "" {
		t.Fatalf("third page should be last: %+v", third)
	}
}

func TestListDeterministic(t *testing.T) {
	ctx := context.Background()
	p := newPager()
	src := newSource(7)

	a, err := page.List[string](ctx, p, src, "T1:orders", 3, "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := page.List[string](ctx, p, src, "T1:orders", 3, "")
	if err != nil {
		t.Fatal(err)
	}
	if a.NextToken != b.NextToken || strings.Join(a.Items, ",") != strings.Join(b.Items, ",") {
		t.Fatalf("identical inputs gave different pages: %+v vs %+v", a, b)
	}
}

func TestListInvalidPageSize(t *testing.T) {
	p := newPager()
	for _, size := range []int{0, -1} {
		src := newSource(3)
		_, err := page.List[string](context.Background(), p, src, "T1:orders", size, "")
		if !errors.Is(err, page.ErrInvalidPageSize) {
			t.Fatalf("size %d: expected ErrInvalidPageSize, got %v", size, err)
		}
		if src.scans != 0 {
			t.Fatalf("size %d: store should not be scanned", size)
		}
	}
}

func TestListClampsPageSize(t *testing.T) {
	p := page.NewPager("cursec_test", 5, 10)
	pg, err := page.List[string](context.Background(), p, newSource(50), "T1:orders", 1000, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(pg.Items) != 10 || pg.NextToken == "" {
		t.Fatalf("expected clamped page of 10 with token, got %d items", len(pg.Items))
	}
}

func TestListRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	p := newPager()
	src := newSource(5)

	first, err := page.List[string](ctx, p, src, "T1:orders", 2, "")
	if err != nil {
		t.Fatal(err)
	}

	forged := page.NewPager("cursec_other", 0, 0)
	foreign, err := page.List[string](ctx, forged, src, "T1:orders", 2, "")
	if err != nil {
		t.Fatal(err)
	}

	tampered := first.NextToken[:len(first.NextToken)-1] + "0"
	if tampered == first.NextToken {
		tampered = first.NextToken[:len(first.NextToken)-1] + "1"
	}

	tests := []struct {
		name  string
		scope string
		token string
	}{
		{"garbage", "T1:orders", "not-a-token"},
		{"wrong version", "T1:orders", "v2" + strings.TrimPrefix(first.NextToken, "v1")},
		{"tampered signature", "T1:orders", tampered},
		{"other secret", "T1:orders", foreign.NextToken},
		{"other collection", "T2:orders", first.NextToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := page.List[string](ctx, p, src, tt.scope, 2, tt.token)
			if !errors.Is(err, page.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestListPropagatesScanErrors(t *testing.T) {
	boom := errors.New("boom")
	src := page.SourceFunc[string]{
		ScanFunc: func(context.Context, string, int) ([]string, error) { return nil, boom },
		KeyFunc:  func(s string) string { return s },
	}
	_, err := page.List[string](context.Background(), newPager(), src, "T1:orders", 5, "")
	if !errors.Is(err, boom) {
		t.Fatalf("expected scan error, got %v", err)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	c := page.NewCodec("cursec_test")
	token, err := c.Encode("T1:orders", "evt_01h455vb4pex5vsknk084sn02q")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(token, "v1.") {
		t.Fatalf("unexpected token format %q", token)
	}
	key, err := c.Decode("T1:orders", token)
	if err != nil {
		t.Fatal(err)
	}
	if key != "evt_01h455vb4pex5vsknk084sn02q" {
		t.Fatalf("decoded key %q", key)
	}
}
