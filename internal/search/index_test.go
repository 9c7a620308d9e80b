package search

import (
	"sync"
	"testing"
)

func catalog() []Document {
	return []Document{
		{ID: "airport", Text: "Đón tiễn sân bay  Tân Sơn Nhất"},
		{ID: "visa", Text: "Dịch vụ gia hạn visa nhanh"},
		{ID: "driver", Text: "Thuê tài xế riêng theo ngày"},
		{ID: "empty", Text: "   "},
		{ID: "dots", Text: "..."},
	}
}

func TestFold(t *testing.T) {
	cases := map[string]string{
		"Đã Thanh Toán": "da thanh toan",
		"dịch vụ":       "dich vu",
		"Miễn phí":      "mien phi",
		"plain":         "plain",
	}
	for in, want := range cases {
		if got := Fold(in); got != want {
			t.Errorf("Fold(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestNew_DropsWordlessDocuments(t *testing.T) {
	if n := New(catalog()).Len(); n != 3 {
		t.Fatalf("Len = %d; want 3", n)
	}
	if n := New(catalog(), WithMinRunes(28)).Len(); n != 1 {
		t.Fatalf("WithMinRunes: Len = %d; want 1", n)
	}
	if n := New(catalog(), WithMinRunes(-1), WithStopwords([]string{" ", ""})).Len(); n != 3 {
		t.Fatalf("no-op options: Len = %d; want 3", n)
	}
	if n := New(nil).Len(); n != 0 {
		t.Fatalf("nil docs: Len = %d", n)
	}
}

func TestTopK_DiacriticInsensitive(t *testing.T) {
	idx := New(catalog())
	for _, q := range []string{"san bay", "SÂN BAY", "sân bay"} {
		res := idx.TopK(q, 5)
		if len(res) != 1 || res[0].ID != "airport" {
			t.Fatalf("TopK(%q) = %+v; want airport", q, res)
		}
		if res[0].Snippet != "Đón tiễn sân bay Tân Sơn Nhất" {
			t.Fatalf("snippet = %q", res[0].Snippet)
		}
	}
}

func TestTopK_RankingAndTies(t *testing.T) {
	idx := New([]Document{
		{ID: "b", Text: "visa nhanh"},
		{ID: "a", Text: "visa nhanh"},
		{ID: "c", Text: "visa nhanh gia hạn thêm tháng"},
	})
	res := idx.TopK("visa nhanh", 0)
	if len(res) != 3 {
		t.Fatalf("len = %d; want 3", len(res))
	}
	if res[0].ID != "a" || res[1].ID != "b" || res[2].ID != "c" {
		t.Fatalf("order = %s,%s,%s; want a,b,c", res[0].ID, res[1].ID, res[2].ID)
	}
	// |{visa,nhanh}| / |{visa,nhanh,gia,han,them,thang}|
	if res[0].Score != 1 || res[2].Score != 2.0/6.0 {
		t.Fatalf("scores = %+v", res)
	}
	if got := idx.TopK("visa", 1); len(got) != 1 {
		t.Fatalf("k cap not applied: %d", len(got))
	}
}

func TestTopK_RepeatedQueryWordsCountOnce(t *testing.T) {
	idx := New([]Document{{ID: "visa", Text: "visa nhanh"}})
	res := idx.TopK("visa visa VISA", 3)
	if len(res) != 1 || res[0].Score != 0.5 {
		t.Fatalf("res = %+v", res)
	}
}

func TestTopK_EmptyInputs(t *testing.T) {
	idx := New(catalog(), WithStopwords([]string{"dịch", "vụ"}))
	if res := idx.TopK("  ", 3); res != nil {
		t.Fatalf("blank query should return nil")
	}
	if res := idx.TopK("dich vu", 3); res != nil {
		t.Fatalf("stopword-only query should return nil, got %+v", res)
	}
	if res := idx.TopK("helicopter", 3); res != nil {
		t.Fatalf("no overlap should return nil")
	}
	if res := New(nil).TopK("visa", 3); res != nil {
		t.Fatalf("empty index should return nil")
	}
	if res := idx.TopK("Gói 3 ngày", 3); len(res) != 1 || res[0].ID != "driver" {
		t.Fatalf("digits and folded words: %+v", res)
	}
}

func TestTopK_ConcurrentReaders(t *testing.T) {
	idx := New(catalog())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if res := idx.TopK("visa nhanh", 2); len(res) != 1 {
					t.Errorf("res = %+v", res)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestFold_Concurrent(t *testing.T) {
	in := map[string]string{"Miễn phí": "mien phi", "Đã thanh toán": "da thanh toan", "Hợp đồng": "hop dong"}
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				for s, want := range in {
					if got := Fold(s); got != want {
						t.Errorf("Fold(%q) = %q; want %q", s, got, want)
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}
