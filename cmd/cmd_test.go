package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"newtab/db"
	"newtab/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAndTidyCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.db")

	require.NoError(t, RootApp().Run([]string{"newtab", "migrate", "--database", path}))

	database, err := db.Open(path)
	require.NoError(t, err)
	require.NoError(t, database.Local().Set(context.Background(), "cache:zhihuHot", []byte(`{}`)))
	require.NoError(t, database.Close())

	// A fresh entry survives tidying
	require.NoError(t, RootApp().Run([]string{"newtab", "tidy", "--database", path}))

	database, err = db.Open(path)
	require.NoError(t, err)
	defer database.Close()
	_, _, err = database.Local().Get(context.Background(), "cache:zhihuHot")
	assert.NoError(t, err)
}

func TestFetchRequiresFeedName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.db")
	err := RootApp().Run([]string{"newtab", "fetch", "--database", path})
	assert.ErrorContains(t, err, "please name a feed")
}

func TestDescribeLocation(t *testing.T) {
	tests := []struct {
		location models.LocationData
		expected string
	}{
		{
			location: models.LocationData{Name: "Oslo", Region: "Oslo", Country: "Norway", Latitude: 59.9127, Longitude: 10.7461},
			expected: "Oslo, Oslo, Norway (59.91, 10.75)",
		},
		{
			location: models.LocationData{Name: "北京", Country: "中国", Latitude: 39.9075, Longitude: 116.39723},
			expected: "北京, 中国 (39.91, 116.40)",
		},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, describeLocation(test.location))
	}
}
