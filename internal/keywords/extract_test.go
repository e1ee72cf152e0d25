package keywords

import (
	"reflect"
	"testing"
)

func TestExtractJapanese(t *testing.T) {
	got := Extract("今日は東京タワーに行きました", "ja-JP")
	want := []string{"東京", "行", "タワー"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExtractJapaneseOrdersKanjiKatakanaAlnum(t *testing.T) {
	got := Extract("iPhoneでラーメンの写真", "ja")
	want := []string{"写真", "ラーメン", "iPhone"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExtractJapaneseDropsSingleCharacterStopWords(t *testing.T) {
	got := Extract("私は北へ", "ja")
	if len(got) != 0 {
		t.Fatalf("expected no keywords, got %v", got)
	}
}

func TestExtractJapaneseDedupesAndCaps(t *testing.T) {
	got := Extract("東京で寿司とラーメンとカレーを食べたiPhone東京", "ja")
	want := []string{"東京", "寿司", "食", "ラーメン"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExtractWords(t *testing.T) {
	got := Extract("Hello world, this is a test.", "en-US")
	want := []string{"Hello", "world", "this", "test"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExtractDedupesAndCaps(t *testing.T) {
	got := Extract("apple apple banana cherry date elderberry", "en")
	want := []string{"apple", "banana", "cherry", "date"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestExtractEmpty(t *testing.T) {
	if got := Extract("   ", "en"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := Extract("a b c", "en"); len(got) != 0 {
		t.Fatalf("expected no keywords, got %v", got)
	}
}
