package models

import (
	"encoding/json"
	"testing"
)

func TestStringListValue(t *testing.T) {
	tests := []struct {
		name string
		list StringList
		want string
	}{
		{name: "nil list", list: nil, want: "[]"},
		{name: "empty list", list: StringList{}, want: "[]"},
		{name: "tags", list: StringList{"beach", "summer"}, want: `["beach","summer"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.list.Value()
			if err != nil {
				t.Fatalf("Value() error = %v", err)
			}
			if v != tt.want {
				t.Errorf("Value() = %v, want %v", v, tt.want)
			}
		})
	}
}

func TestStringListScan(t *testing.T) {
	tests := []struct {
		name    string
		src     interface{}
		want    StringList
		wantErr bool
	}{
		{name: "string", src: `["a","b"]`, want: StringList{"a", "b"}},
		{name: "bytes", src: []byte(`["a"]`), want: StringList{"a"}},
		{name: "null", src: nil, want: StringList{}},
		{name: "json null", src: "null", want: StringList{}},
		{name: "empty", src: "", want: StringList{}},
		{name: "garbage", src: "not json", wantErr: true},
		{name: "wrong type", src: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got StringList
			err := got.Scan(tt.src)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Scan() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Scan()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPhotoJSONIsFlat(t *testing.T) {
	p := Photo{
		Base:        Base{ID: "p1"},
		PhotoFields: PhotoFields{S3Key: "photos/1-a.jpg", AlbumID: "a1", Tags: StringList{"x"}},
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"id", "s3Key", "albumId", "tags", "createdAt"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("expected key %q in %s", key, b)
		}
	}
	if p.Meta().ID != "p1" {
		t.Errorf("Meta().ID = %v, want p1", p.Meta().ID)
	}
}
