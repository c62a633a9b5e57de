package main

import (
	"flag"
	"fmt"
	"os"

	rqproc "github.com/tes-exp/rqproc_go/pkg"
)

var configuration rqproc.Configuration

var logger rqproc.SlogLogger

func init() {
	logger = rqproc.NewLogger(os.Stdout, os.Stderr)
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	flag.Parse()

	var err error
	configuration, err = rqproc.LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	rqproc.SetConfiguration(configuration)
	rqproc.SetLogger(logger)

	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Reading configuration file: %s", *configFilename), "main")
		rqproc.PrintConfiguration(configuration, logger)
	}
	if len(configuration.Series) == 0 || len(configuration.Channels) == 0 {
		logger.Error("No series or channels configured")
		os.Exit(1)
	}

	bundle, err := rqproc.LoadTemplateBundle(configuration.TemplateFile,
		configuration.Channels, configuration.Detector)
	if err != nil {
		message := fmt.Errorf("Error loading template bundle: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}

	setup, err := buildSetup(bundle)
	if err != nil {
		message := fmt.Errorf("Error building RQ setup: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}

	opts := rqproc.BatchOptions{
		Channels:   configuration.Channels,
		Detector:   configuration.Detector,
		Setup:      setup,
		Bundle:     bundle,
		NumWorkers: configuration.NumWorkers,
		MaxEvents:  configuration.MaxEvents,
	}
	table, err := rqproc.ProcessSeries(configuration.BasePath, configuration.Series,
		configuration.FileType, opts)
	if err != nil {
		message := fmt.Errorf("Error processing series: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}

	if configuration.SaveRQ {
		if err := saveBySeries(table); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
	}
}

// buildSetup translates the configured feature windows into a validated RQ
// setup. The trace length is taken from the templates.
func buildSetup(bundle *rqproc.TemplateBundle) (*rqproc.RQSetup, error) {
	entry, err := bundle.Get(configuration.Channels[0], configuration.Detector)
	if err != nil {
		return nil, err
	}

	builder, err := rqproc.NewSetupBuilder(len(entry.Template), configuration.SampleRate)
	if err != nil {
		return nil, err
	}
	if err := builder.AdjustBaseline(true, configuration.BaselineStart, configuration.BaselineStop); err != nil {
		return nil, err
	}
	if err := builder.AdjustIntegral(true, configuration.IntegralStart, configuration.IntegralStop); err != nil {
		return nil, err
	}
	if err := builder.AdjustMaxMin(true, configuration.MaxMinStart, configuration.MaxMinStop); err != nil {
		return nil, err
	}
	builder.AdjustOFAmp(true, true)
	if err := builder.AdjustOFAmpWindow(true, configuration.OFWindowLow, configuration.OFWindowHigh); err != nil {
		return nil, err
	}
	if err := builder.AdjustChi2LowFreq(true, configuration.Chi2FCutoff); err != nil {
		return nil, err
	}
	return builder.Build(), nil
}

// saveBySeries writes one versioned RQ file per processed series.
func saveBySeries(table *rqproc.RQTable) error {
	for _, snum := range table.SeriesNumbers() {
		sub := &rqproc.RQTable{}
		for _, row := range table.Rows {
			if row.Series == snum {
				sub.Append(row)
			}
		}
		_, err := rqproc.SaveRQTable(sub, configuration.SavePath, snum,
			configuration.Channels, configuration.Detector, configuration.CompressionLevel)
		if err != nil {
			return fmt.Errorf("Error saving series %d: %w", snum, err)
		}
	}
	return nil
}
