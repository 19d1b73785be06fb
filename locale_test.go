package lunarys_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fwojciec/lunarys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocale_FormatError(t *testing.T) {
	t.Parallel()

	en := lunarys.DefaultLocale()
	zh := lunarys.ChineseLocale()

	tests := []struct {
		name   string
		locale lunarys.Locale
		err    error
		want   string
	}{
		{
			name:   "backend message",
			locale: en,
			err:    &lunarys.BackendError{Message: "rate limited"},
			want:   "Error: rate limited",
		},
		{
			name:   "invalid id",
			locale: zh,
			err:    fmt.Errorf("%q: %w", "abc", lunarys.ErrInvalidConversationID),
			want:   "错误: 收到无效的会话ID",
		},
		{
			name:   "http status",
			locale: en,
			err:    fmt.Errorf("http: %w", &lunarys.StatusError{StatusCode: 500}),
			want:   "Error: HTTP 500",
		},
		{
			name:   "transport failure",
			locale: zh,
			err:    errors.New("unexpected EOF"),
			want:   "错误: 流式传输错误: unexpected EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.locale.FormatError(tt.err))
		})
	}
}

func TestLocaleByName(t *testing.T) {
	t.Parallel()

	l, err := lunarys.LocaleByName("zh")
	require.NoError(t, err)
	assert.Equal(t, "新对话", l.NewConversationTitle)

	l, err = lunarys.LocaleByName("")
	require.NoError(t, err)
	assert.Equal(t, lunarys.DefaultLocale(), l)

	_, err = lunarys.LocaleByName("fr")
	assert.ErrorIs(t, err, lunarys.ErrValidation)
}
