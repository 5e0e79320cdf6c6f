package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPermanentSendError(t *testing.T) {
	permanent := []error{
		errors.New("telegram: Bad Request: chat not found"),
		errors.New("telegram: Forbidden: bot was blocked by the user"),
		errors.New("telegram: Forbidden: user is deactivated"),
		errors.New("telegram: Forbidden: bot was kicked from the group chat"),
	}
	for _, err := range permanent {
		assert.True(t, isPermanentSendError(err), "ожидалась постоянная ошибка: %v", err)
	}

	transient := []error{
		errors.New("telegram: Too Many Requests: retry after 5"),
		errors.New("context deadline exceeded"),
		errors.New("dial tcp: connection refused"),
	}
	for _, err := range transient {
		assert.False(t, isPermanentSendError(err), "ожидалась временная ошибка: %v", err)
	}
}
