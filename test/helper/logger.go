// Package helper provides shared test utilities.
package helper

import (
	"testing"

	"github.com/LerianStudio/lib-commons/commons/log"
	"go.uber.org/mock/gomock"
)

// NewTestLogger returns a permissive mock logger for tests that assert on
// behavior rather than log output.
func NewTestLogger(t *testing.T) log.Logger {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockLogger := log.NewMockLogger(ctrl)

	mockLogger.EXPECT().Debug(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Debugf(gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Info(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Infof(gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Warn(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Warnf(gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Error(gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Errorf(gomock.Any(), gomock.Any()).AnyTimes()

	return mockLogger
}
