// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"

	"github.com/Arke-Institute/arke-metadata-service/deepinfra"
	"github.com/Arke-Institute/arke-metadata-service/log"
)

var (
	deepinfraAPIKeyFlag = cli.StringFlag{
		Name:   "deepinfra-api-key",
		Usage:  "API key for the model gateway",
		EnvVar: "DEEPINFRA_API_KEY",
	}
	deepinfraBaseURLFlag = cli.StringFlag{
		Name:   "deepinfra-base-url",
		Value:  deepinfra.DefaultBaseURL,
		Usage:  "base URL of the OpenAI-compatible model gateway",
		EnvVar: "DEEPINFRA_BASE_URL",
	}
	modelNameFlag = cli.StringFlag{
		Name:   "model-name",
		Value:  deepinfra.DefaultModel,
		Usage:  "model used for extraction",
		EnvVar: "MODEL_NAME",
	}
	modelMaxTokensFlag = cli.IntFlag{
		Name:   "model-max-tokens",
		Value:  128000,
		Usage:  "context window of the extraction model, in tokens",
		EnvVar: "MODEL_MAX_TOKENS",
	}
	contentTokenProportionFlag = cli.Float64Flag{
		Name:   "content-token-proportion",
		Value:  0.5,
		Usage:  "share of the context window reserved for file contents",
		EnvVar: "CONTENT_TOKEN_PROPORTION",
	}
	maxFileSizeFlag = cli.StringFlag{
		Name:   "max-file-size",
		Value:  "4MiB",
		Usage:  "largest single component admitted into the extraction context",
		EnvVar: "MAX_FILE_SIZE",
	}
	maxRetriesPerPIFlag = cli.IntFlag{
		Name:   "max-retries-per-pi",
		Value:  3,
		Usage:  "extraction attempts per item before it fails terminally",
		EnvVar: "MAX_RETRIES_PER_PI",
	}
	maxCallbackRetriesFlag = cli.IntFlag{
		Name:   "max-callback-retries",
		Value:  3,
		Usage:  "callback delivery attempts before a chunk settles unacknowledged",
		EnvVar: "MAX_CALLBACK_RETRIES",
	}
	alarmIntervalFlag = cli.IntFlag{
		Name:   "alarm-interval-ms",
		Value:  100,
		Usage:  "pause between chunk state machine passes, in milliseconds",
		EnvVar: "ALARM_INTERVAL_MS",
	}
	storeURLFlag = cli.StringFlag{
		Name:   "store-url",
		Usage:  "base URL of the object store",
		EnvVar: "ARKE_STORE_URL",
	}
	orchestratorURLFlag = cli.StringFlag{
		Name:   "orchestrator-url",
		Usage:  "base URL of the orchestrator receiving chunk callbacks",
		EnvVar: "ORCHESTRATOR_URL",
	}
	apiAddrFlag = cli.StringFlag{
		Name:   "api-addr",
		Value:  "localhost:8669",
		Usage:  "API service listening address",
		EnvVar: "PINAX_API_ADDR",
	}
	apiCorsFlag = cli.StringFlag{
		Name:   "api-cors",
		Value:  "",
		Usage:  "comma separated list of domains from which to accept cross origin requests to API",
		EnvVar: "PINAX_API_CORS",
	}
	dataDirFlag = cli.StringFlag{
		Name:   "data-dir",
		Value:  defaultDataDir(),
		Usage:  "directory for in-flight chunk databases",
		EnvVar: "PINAX_DATA_DIR",
	}
	verbosityFlag = cli.IntFlag{
		Name:   "verbosity",
		Value:  log.LegacyLevelInfo,
		Usage:  "log verbosity (0-5)",
		EnvVar: "PINAX_VERBOSITY",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables API requests logging",
	}
	pprofFlag = cli.BoolFlag{
		Name:  "pprof",
		Usage: "turn on go-pprof",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
	enableAdminFlag = cli.BoolFlag{
		Name:  "enable-admin",
		Usage: "enables admin server",
	}
	adminAddrFlag = cli.StringFlag{
		Name:  "admin-addr",
		Value: "localhost:2113",
		Usage: "admin service listening address",
	}
)
