package flags

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/invoice-financing-protocol/api"
	"github.com/ruteri/invoice-financing-protocol/common"
	"github.com/ruteri/invoice-financing-protocol/cryptoutils"
	"github.com/ruteri/invoice-financing-protocol/interfaces"
	"github.com/ruteri/invoice-financing-protocol/registry"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
		SignatureMaxSkew:         cCtx.Duration(SignatureSkewFlag.Name),
	}
}

// ProtocolConfig reads the deployment-time protocol configuration.
func ProtocolConfig(cCtx *cli.Context) (registry.ConfigOpts, error) {
	admin, err := interfaces.ParseAddress(cCtx.String(AdminFlag.Name))
	if err != nil {
		return registry.ConfigOpts{}, fmt.Errorf("--%s: %w", AdminFlag.Name, err)
	}

	var assessors []interfaces.Address
	for _, s := range cCtx.StringSlice(AssessorFlag.Name) {
		a, err := interfaces.ParseAddress(s)
		if err != nil {
			return registry.ConfigOpts{}, fmt.Errorf("--%s: %w", AssessorFlag.Name, err)
		}
		assessors = append(assessors, a)
	}

	var feeSink interfaces.Address
	if s := cCtx.String(FeeSinkFlag.Name); s != "" {
		if feeSink, err = interfaces.ParseAddress(s); err != nil {
			return registry.ConfigOpts{}, fmt.Errorf("--%s: %w", FeeSinkFlag.Name, err)
		}
	}

	policy, err := interfaces.ParseRepaymentPolicy(cCtx.String(RepaymentPolicyFlag.Name))
	if err != nil {
		return registry.ConfigOpts{}, fmt.Errorf("--%s: %w", RepaymentPolicyFlag.Name, err)
	}

	return registry.ConfigOpts{
		Admin:           admin,
		FeeBasisPoints:  cCtx.Uint64(FeeBasisPointsFlag.Name),
		Assessors:       assessors,
		AdminIsAssessor: cCtx.Bool(AdminIsAssessorFlag.Name),
		RepaymentPolicy: policy,
		FeeSink:         feeSink,
	}, nil
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Value:   "http://127.0.0.1:8545",
	Usage:   "address to connect to RPC",
	EnvVars: []string{"RPC_ADDR"},
}

var ServerAddrFlag = &cli.StringFlag{
	Name:    "server-addr",
	Value:   "http://127.0.0.1:8080",
	Usage:   "protocol server address",
	EnvVars: []string{"FINANCING_SERVER_ADDR"},
}

var KeyFileFlag = &cli.StringFlag{
	Name:    "key-file",
	Usage:   "caller key file",
	EnvVars: []string{"FINANCING_KEY_FILE"},
}

var KeyPassphraseFlag = &cli.StringFlag{
	Name:    "key-passphrase",
	Usage:   "passphrase of an encrypted key file",
	EnvVars: []string{"FINANCING_KEY_PASSPHRASE"},
}

var AdminFlag = &cli.StringFlag{
	Name:     "admin",
	Required: true,
	Usage:    "initial protocol admin address",
	EnvVars:  []string{"PROTOCOL_ADMIN"},
}

var AssessorFlag = &cli.StringSliceFlag{
	Name:    "assessor",
	Usage:   "risk assessor address, may be repeated",
	EnvVars: []string{"PROTOCOL_ASSESSORS"},
}

var AdminIsAssessorFlag = &cli.BoolFlag{
	Name:  "admin-is-assessor",
	Value: false,
	Usage: "let the current admin attach risk scores",
}

var FeeBasisPointsFlag = &cli.Uint64Flag{
	Name:    "fee-bps",
	Value:   0,
	Usage:   "initial protocol fee in basis points (0-10000)",
	EnvVars: []string{"PROTOCOL_FEE_BPS"},
}

var FeeSinkFlag = &cli.StringFlag{
	Name:  "fee-sink",
	Usage: "address receiving protocol fees (defaults to the admin)",
}

var RepaymentPolicyFlag = &cli.StringFlag{
	Name:  "repayment-policy",
	Value: interfaces.RepaymentByPayerOrBusiness.String(),
	Usage: "who may mark an invoice repaid: payer-or-business, payer or business",
}

var SignatureSkewFlag = &cli.DurationFlag{
	Name:  "signature-max-skew",
	Value: cryptoutils.DefaultMaxSkew,
	Usage: "accepted age of caller request signatures",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}

var ProtocolFlags = []cli.Flag{
	AdminFlag,
	AssessorFlag,
	AdminIsAssessorFlag,
	FeeBasisPointsFlag,
	FeeSinkFlag,
	RepaymentPolicyFlag,
	SignatureSkewFlag,
}
