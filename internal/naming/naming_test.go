package naming

import "testing"

func TestCaseConversions(t *testing.T) {
	tests := []struct {
		input  string
		pascal string
		camel  string
		snake  string
		upper  string
	}{
		{"foo", "Foo", "foo", "foo", "FOO"},
		{"fooBar", "FooBar", "fooBar", "foo_bar", "FOO_BAR"},
		{"FooBar", "FooBar", "fooBar", "foo_bar", "FOO_BAR"},
		{"foo_bar", "FooBar", "fooBar", "foo_bar", "FOO_BAR"},
		{"FOO_BAR", "FooBar", "fooBar", "foo_bar", "FOO_BAR"},
		{"foo-bar", "FooBar", "fooBar", "foo_bar", "FOO_BAR"},
		{"ID", "Id", "id", "id", "ID"},
		{"userID", "UserId", "userId", "user_id", "USER_ID"},
		{"VolumeSpec", "VolumeSpec", "volumeSpec", "volume_spec", "VOLUME_SPEC"},
		{"HTTPServer", "HttpServer", "httpServer", "http_server", "HTTP_SERVER"},
		{"StatusActive", "StatusActive", "statusActive", "status_active", "STATUS_ACTIVE"},
		{"iscsiLUN", "IscsiLun", "iscsiLun", "iscsi_lun", "ISCSI_LUN"},
		{"BlockIDs", "BlockIds", "blockIds", "block_ids", "BLOCK_IDS"},
		{"IDsByName", "IdsByName", "idsByName", "ids_by_name", "IDS_BY_NAME"},
		{"Sha256Sum", "Sha256Sum", "sha256Sum", "sha256_sum", "SHA256_SUM"},
		{"", "", "", "", ""},
		{"a", "A", "a", "a", "A"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ToPascalCase(tt.input); got != tt.pascal {
				t.Errorf("ToPascalCase(%q) = %q, want %q", tt.input, got, tt.pascal)
			}
			if got := ToCamelCase(tt.input); got != tt.camel {
				t.Errorf("ToCamelCase(%q) = %q, want %q", tt.input, got, tt.camel)
			}
			if got := ToSnakeCase(tt.input); got != tt.snake {
				t.Errorf("ToSnakeCase(%q) = %q, want %q", tt.input, got, tt.snake)
			}
			if got := ToUpperSnakeCase(tt.input); got != tt.upper {
				t.Errorf("ToUpperSnakeCase(%q) = %q, want %q", tt.input, got, tt.upper)
			}
		})
	}
}

func TestJSONName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"name", "name"},
		{"creation_time", "creationTime"},
		{"user_ID", "userID"},
		{"foo__bar", "fooBar"},
		{"trailing_", "trailing"},
		{"Already", "Already"},
		{"field_2", "field2"},
	}

	for _, tt := range tests {
		if got := JSONName(tt.input); got != tt.want {
			t.Errorf("JSONName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
