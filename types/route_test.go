package types

import "testing"

func strPtr(s string) *string { return &s }

func TestRouteMeta_Validate(t *testing.T) {
	tests := []struct {
		name    string
		meta    RouteMeta
		wantErr bool
	}{
		{
			name: "valid route",
			meta: RouteMeta{RequestID: "req-001", Pathname: "/blog/hello"},
		},
		{
			name: "valid rewritten route",
			meta: RouteMeta{RequestID: "req-002", Pathname: "/blog/hello", OriginalPathname: strPtr("/posts/hello")},
		},
		{
			name:    "missing request id",
			meta:    RouteMeta{Pathname: "/blog"},
			wantErr: true,
		},
		{
			name:    "missing pathname",
			meta:    RouteMeta{RequestID: "req-003"},
			wantErr: true,
		},
		{
			name:    "unrooted pathname",
			meta:    RouteMeta{RequestID: "req-004", Pathname: "blog"},
			wantErr: true,
		},
		{
			name:    "unrooted original pathname",
			meta:    RouteMeta{RequestID: "req-005", Pathname: "/blog", OriginalPathname: strPtr("posts")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseFetchCachePolicy(t *testing.T) {
	valid := []string{"", "only-cache", "force-cache", "default-cache",
		"force-no-store", "default-no-store", "only-no-store"}
	for _, s := range valid {
		if _, err := ParseFetchCachePolicy(s); err != nil {
			t.Errorf("ParseFetchCachePolicy(%q) = %v, want nil", s, err)
		}
	}

	if _, err := ParseFetchCachePolicy("no-cache"); err == nil {
		t.Error("ParseFetchCachePolicy(no-cache): expected error")
	}
}

func TestFetchCachePolicy_NoStore(t *testing.T) {
	tests := []struct {
		policy FetchCachePolicy
		want   bool
	}{
		{FetchCacheForceNoStore, true},
		{FetchCacheOnlyNoStore, true},
		{FetchCacheDefaultNoStore, true},
		{FetchCacheOnlyCache, false},
		{FetchCacheForceCache, false},
		{FetchCacheDefaultCache, false},
		{FetchCacheUnset, false},
	}

	for _, tt := range tests {
		if got := tt.policy.NoStore(); got != tt.want {
			t.Errorf("%q.NoStore() = %v, want %v", tt.policy, got, tt.want)
		}
	}
}
