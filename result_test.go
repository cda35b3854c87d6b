package pake

import "testing"

func TestResultEquality(t *testing.T) {
	t.Parallel()

	f1 := FileResult("abc")
	f2 := FileResult("abc")
	f3 := FileResult("def")
	if !f1.Equal(f2) {
		t.Fatal("equal file digests compare unequal")
	}
	if f1.Equal(f3) {
		t.Fatal("different file digests compare equal")
	}

	j1, err := JSONResult(map[string]any{"a": 1, "b": []any{"x"}})
	if err != nil {
		t.Fatal(err)
	}
	j2, err := JSONResult(map[string]any{"b": []any{"x"}, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if !j1.Equal(j2) {
		t.Fatal("semantically equal JSON values compare unequal")
	}

	// Same payload text, different tags.
	jd, _ := JSONResult("abc")
	if f1.Equal(jd) {
		t.Fatal("file digest compares equal to JSON string of same text")
	}
}

func TestAbsentNeverEqual(t *testing.T) {
	t.Parallel()
	a := AbsentResult()
	if a.Equal(a) {
		t.Fatal("Absent compares equal to itself")
	}
	if a.Equal(FileResult("abc")) || FileResult("abc").Equal(a) {
		t.Fatal("Absent compares equal to a file result")
	}
}

func TestJSONResultNoResultSentinel(t *testing.T) {
	t.Parallel()
	r, err := JSONResult(NoResult)
	if err != nil {
		t.Fatal(err)
	}
	if r.Kind() != KindAbsent {
		t.Fatalf("kind = %v, want KindAbsent", r.Kind())
	}
}

func TestJSONResultNil(t *testing.T) {
	t.Parallel()
	r, err := JSONResult(nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Kind() != KindJSON || r.JSON() != "null" {
		t.Fatalf("nil result = %v %q", r.Kind(), r.JSON())
	}
	if r.Value() != nil {
		t.Fatalf("Value() = %v, want nil", r.Value())
	}
}

func TestJSONResultRejectsUnencodable(t *testing.T) {
	t.Parallel()
	if _, err := JSONResult(make(chan int)); err == nil {
		t.Fatal("channel accepted as a JSON result")
	}
}

func TestResultString(t *testing.T) {
	t.Parallel()
	if got := FileResult("ff").String(); got != "file:ff" {
		t.Fatalf("file string = %q", got)
	}
	j, _ := JSONResult(1)
	if got := j.String(); got != "json:1" {
		t.Fatalf("json string = %q", got)
	}
	if got := AbsentResult().String(); got != "absent" {
		t.Fatalf("absent string = %q", got)
	}
}
