// Package logtest provides the logger used by ginkgo suites.
package logtest

import (
	"github.com/go-logr/logr"
	"github.com/onsi/ginkgo/v2"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/llm-d/llm-d-edge-placement/internal/logging"
)

// NewTestLogger installs a development logger writing to the ginkgo writer at trace verbosity.
func NewTestLogger() logr.Logger {
	logger := zap.New(
		zap.UseDevMode(true),
		zap.WriteTo(ginkgo.GinkgoWriter),
		zap.Level(zapcore.Level(-logging.TRACE)),
	)
	ctrl.SetLogger(logger)
	return logger
}
