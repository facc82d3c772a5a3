// Copyright (c) 2025 The Arke Institute developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// pinaxd runs the PINAX metadata extraction service.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/Arke-Institute/arke-metadata-service/api"
	"github.com/Arke-Institute/arke-metadata-service/arkestore"
	"github.com/Arke-Institute/arke-metadata-service/chunk"
	"github.com/Arke-Institute/arke-metadata-service/cmd/pinaxd/httpserver"
	"github.com/Arke-Institute/arke-metadata-service/deepinfra"
	"github.com/Arke-Institute/arke-metadata-service/extract"
	"github.com/Arke-Institute/arke-metadata-service/fetcher"
	"github.com/Arke-Institute/arke-metadata-service/health"
	"github.com/Arke-Institute/arke-metadata-service/log"
	"github.com/Arke-Institute/arke-metadata-service/metrics"
	"github.com/Arke-Institute/arke-metadata-service/orchestrator"
)

var (
	version       string
	gitCommit     string
	gitTag        string
	copyrightYear string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Pinax",
		Usage:     "Arke PINAX metadata extraction service",
		Copyright: fmt.Sprintf("2025-%s The Arke Institute <https://arke.institute/>", copyrightYear),
		Flags: []cli.Flag{
			deepinfraAPIKeyFlag,
			deepinfraBaseURLFlag,
			modelNameFlag,
			modelMaxTokensFlag,
			contentTokenProportionFlag,
			maxFileSizeFlag,
			maxRetriesPerPIFlag,
			maxCallbackRetriesFlag,
			alarmIntervalFlag,
			storeURLFlag,
			orchestratorURLFlag,
			apiAddrFlag,
			apiCorsFlag,
			dataDirFlag,
			verbosityFlag,
			jsonLogsFlag,
			enableAPILogsFlag,
			pprofFlag,
			enableMetricsFlag,
			metricsAddrFlag,
			enableAdminFlag,
			adminAddrFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { log.Info("exited") }()

	logLevel := initLogger(ctx)

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		url, closeMetrics, err := httpserver.StartMetricsServer(ctx.String(metricsAddrFlag.Name))
		if err != nil {
			return fmt.Errorf("unable to start metrics server - %w", err)
		}
		log.Info("metrics server started", "url", url)
		defer func() { log.Info("stopping metrics server..."); closeMetrics() }()
	}

	dataDir := makeDataDir(ctx)

	storeURL := ctx.String(storeURLFlag.Name)
	if storeURL == "" {
		fatal(fmt.Sprintf("object store URL not set, use -%s to specify", storeURLFlag.Name))
	}
	if ctx.String(deepinfraAPIKeyFlag.Name) == "" {
		log.Warn("model gateway API key not set, extraction calls will be rejected upstream")
	}
	orchestratorURL := ctx.String(orchestratorURLFlag.Name)
	if orchestratorURL == "" {
		log.Warn("orchestrator URL not set, chunk callbacks will fail until configured")
	}

	maxFileBytes, err := humanize.ParseBytes(ctx.String(maxFileSizeFlag.Name))
	if err != nil {
		fatal(fmt.Sprintf("parse -%s [%v]: %v", maxFileSizeFlag.Name, ctx.String(maxFileSizeFlag.Name), err))
	}

	store := arkestore.New(storeURL)
	gateway := deepinfra.New(
		ctx.String(deepinfraBaseURLFlag.Name),
		ctx.String(deepinfraAPIKeyFlag.Name),
		ctx.String(modelNameFlag.Name),
	)
	bundler := fetcher.New(store, ctx.Int(modelMaxTokensFlag.Name), ctx.Float64(contentTokenProportionFlag.Name), maxFileBytes)
	extractor := extract.New(gateway)
	orch := orchestrator.New(orchestratorURL)

	dispatcher := chunk.NewDispatcher(chunk.Config{
		DataDir:            dataDir,
		MaxRetriesPerPI:    ctx.Int(maxRetriesPerPIFlag.Name),
		MaxCallbackRetries: ctx.Int(maxCallbackRetriesFlag.Name),
		AlarmInterval:      time.Duration(ctx.Int(alarmIntervalFlag.Name)) * time.Millisecond,
	}, store, bundler, extractor, orch)
	defer func() { log.Info("closing dispatcher..."); dispatcher.Close() }()

	recovered, err := dispatcher.Recover()
	if err != nil {
		fatal(fmt.Sprintf("recover chunks from data dir [%v]: %v", dataDir, err))
	}
	if recovered > 0 {
		log.Info("resumed interrupted chunks", "count", recovered)
	}

	healthStatus := health.New(dispatcher.ActiveChunks)

	apiHandler, apiLogsEnabled := api.New(dispatcher, extractor, healthStatus, api.Options{
		AllowedOrigins:  ctx.String(apiCorsFlag.Name),
		PprofOn:         ctx.Bool(pprofFlag.Name),
		EnableReqLogger: ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:   ctx.Bool(enableMetricsFlag.Name),
	})

	apiURL, closeAPI, err := httpserver.StartAPIServer(ctx.String(apiAddrFlag.Name), apiHandler)
	if err != nil {
		return fmt.Errorf("unable to start API server - %w", err)
	}
	defer func() { log.Info("stopping API server..."); closeAPI() }()

	adminURL := "disabled"
	if ctx.Bool(enableAdminFlag.Name) {
		url, closeAdmin, err := httpserver.StartAdminServer(
			ctx.String(adminAddrFlag.Name),
			logLevel,
			healthStatus,
			apiLogsEnabled,
		)
		if err != nil {
			return fmt.Errorf("unable to start admin server - %w", err)
		}
		adminURL = url
		defer func() { log.Info("stopping admin server..."); closeAdmin() }()
	}

	healthStatus.SetReady(true)

	printStartupMessage(ctx, dataDir, apiURL, adminURL)

	handleExitSignal()
	return nil
}

func printStartupMessage(ctx *cli.Context, dataDir, apiURL, adminURL string) {
	fmt.Printf(`Starting %v
    Version      [ %v ]
    Model        [ %v ]
    Store        [ %v ]
    Orchestrator [ %v ]
    Data dir     [ %v ]
    API portal   [ %v ]
    Admin portal [ %v ]
`,
		"Pinax",
		fullVersion(),
		ctx.String(modelNameFlag.Name),
		ctx.String(storeURLFlag.Name),
		func() string {
			if u := ctx.String(orchestratorURLFlag.Name); u != "" {
				return u
			}
			return "not set"
		}(),
		dataDir,
		apiURL,
		adminURL)
}
