package freight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMockClientServesCannedOptions(t *testing.T) {
	t.Parallel()

	var client Client = MockClient{}
	options, err := client.Quote(context.Background(), "01310-100", nil)
	require.NoError(t, err)
	require.Len(t, options, 2)
	require.Equal(t, "PAC", options[0].Service)
	require.Equal(t, "SEDEX", options[1].Service)
	require.Less(t, options[0].Price, options[1].Price)
}
