package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		in      string
		want    Name
		wantErr bool
	}{
		{"DELETE", Delete, false},
		{"delete", Delete, false},
		{" Rename ", Rename, false},
		{"COPY", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseName(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"delete needs no settings", Config{Name: Delete}, ""},
		{"rename ok", Config{Name: Rename, Settings: map[string]string{"find": "^a", "replace": "b"}}, ""},
		{"rename empty replace allowed", Config{Name: Rename, Settings: map[string]string{"find": "^tmp/", "replace": ""}}, ""},
		{"rename missing find", Config{Name: Rename, Settings: map[string]string{"replace": "b"}}, `"find"`},
		{"rename missing replace", Config{Name: Rename, Settings: map[string]string{"find": "a"}}, `"replace"`},
		{"rename bad pattern", Config{Name: Rename, Settings: map[string]string{"find": "(", "replace": "b"}}, "invalid find pattern"},
		{"rename bad deleteSource", Config{Name: Rename, Settings: map[string]string{"find": "a", "replace": "b", "deleteSource": "maybe"}}, "deleteSource"},
		{"rename bad maxConcurrency", Config{Name: Rename, Settings: map[string]string{"find": "a", "replace": "b", "maxConcurrency": "-2"}}, "maxConcurrency"},
		{"unknown action", Config{Name: "ARCHIVE"}, "not supported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DeleteSource(t *testing.T) {
	for in, want := range map[string]bool{"true": true, "True": true, "false": false, "": false} {
		cfg := Config{Settings: map[string]string{SettingDeleteSource: in}}
		got, err := cfg.DeleteSource()
		require.NoError(t, err)
		assert.Equal(t, want, got, "deleteSource=%q", in)
	}

	got, err := Config{}.DeleteSource()
	require.NoError(t, err)
	assert.False(t, got)
}

func TestRenamer_Target(t *testing.T) {
	r, err := NewRenamer(map[string]string{"find": "^old/", "replace": "new/"})
	require.NoError(t, err)

	assert.Equal(t, "new/1.txt", r.Target("old/1.txt"))
	assert.Equal(t, "keep/2.txt", r.Target("keep/2.txt"))
	assert.Equal(t, r.Target("old/1.txt"), r.Target("old/1.txt"))

	groups, err := NewRenamer(map[string]string{"find": `^(\w+)/(\d+)\.txt$`, "replace": "${2}/${1}.txt"})
	require.NoError(t, err)
	assert.Equal(t, "42/logs.txt", groups.Target("logs/42.txt"))
}
