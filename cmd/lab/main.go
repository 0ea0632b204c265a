package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"garment-lab/cmd"
	"garment-lab/internal/client"
	"garment-lab/internal/config"
	"garment-lab/internal/gateway"
	"garment-lab/internal/pipeline"
	"garment-lab/internal/utils"
	"garment-lab/pkg/api"

	"github.com/schollz/progressbar/v3"
)

var (
	inputsFile = flag.String("inputs", "", "file with one garment description per line")
	serverSide = flag.Bool("server-side", false, "run the pipeline on the server and stream its progress")
)

type outcome struct {
	Run       api.PipelineRun
	ImagePath string
}

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.LoadLab()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	inputs, err := readInputs(*inputsFile, flag.Args())
	if err != nil {
		log.Fatalf("error reading inputs: %v", err)
	}
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "usage: lab [-env file] [-inputs file] [-server-side] \"garment description\" ...")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(cfg.ServerURL)
	health, err := c.Health(ctx)
	if err != nil {
		log.Fatalf("server at %s is not available: %v", cfg.ServerURL, err)
	}
	log.Printf("connected to %s (text model %s, image model %s)", cfg.ServerURL, health.TextModel, health.ImageModel)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		log.Fatalf("error creating output directory: %v", err)
	}

	l := &lab{client: c, outputDir: cfg.OutputDir, serverSide: *serverSide}

	if len(inputs) == 1 {
		res, err := l.runOne(ctx, inputs[0], true)
		printOutcome(res, err)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	if failed := l.runBatch(ctx, inputs, cfg.Concurrency); failed > 0 {
		os.Exit(1)
	}
}

type lab struct {
	client     *client.Client
	outputDir  string
	serverSide bool
}

func (l *lab) runOne(ctx context.Context, input string, showStages bool) (outcome, error) {
	var bar *progressbar.ProgressBar
	if showStages {
		bar = progressbar.NewOptions(3,
			progressbar.OptionSetDescription("⏳ describing"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	}
	onStage := func(stage string) {
		if bar == nil {
			return
		}
		switch stage {
		case string(pipeline.StageInterpreting), string(pipeline.StageExecuting):
			bar.Describe("⏳ " + stage)
			_ = bar.Add(1)
		case string(pipeline.StageComplete), string(pipeline.StageFailed):
			_ = bar.Finish()
		}
	}

	var run api.PipelineRun
	var err error
	if l.serverSide {
		run, err = l.client.RunPipeline(ctx, input, func(r api.PipelineRun) { onStage(r.Stage) })
		if err == nil {
			err = runError(run)
		}
	} else {
		orchestrator := pipeline.New(l.client, l.client, pipeline.WithObserver(func(r pipeline.Run) { onStage(string(r.Stage)) }))
		var local pipeline.Run
		local, err = orchestrator.Submit(ctx, input)
		run = toWire(local)
	}

	res := outcome{Run: run}
	if err != nil {
		return res, err
	}

	res.ImagePath, err = l.writeImage(run)
	return res, err
}

func (l *lab) runBatch(ctx context.Context, inputs []string, concurrency int) int {
	queue := make(chan string, len(inputs))
	for _, input := range inputs {
		queue <- input
	}
	close(queue)

	completed := make(chan utils.CompletedTask[string, outcome], len(inputs))
	worker := func(ctx context.Context, input string) (outcome, error) {
		return l.runOne(ctx, input, false)
	}
	utils.RunInPool(ctx, worker, queue, completed, concurrency)

	bar := progressbar.NewOptions(len(inputs),
		progressbar.OptionSetDescription("⏳ running pipelines"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	var results []utils.CompletedTask[string, outcome]
	for task := range completed {
		results = append(results, task)
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	failed := 0
	for _, task := range results {
		fmt.Printf("\n=== %s\n", task.Task)
		printOutcome(task.Result, task.Error)
		if task.Error != nil {
			failed++
		}
	}
	fmt.Printf("\n%d of %d runs succeeded\n", len(results)-failed, len(results))
	return failed
}

func (l *lab) writeImage(run api.PipelineRun) (string, error) {
	image, err := gateway.ParseDataURI(run.ImageURL)
	if err != nil {
		return "", fmt.Errorf("error decoding image: %w", err)
	}

	ext := ".bin"
	if _, subtype, ok := strings.Cut(image.MediaType, "/"); ok && subtype != "" {
		ext = "." + subtype
	}

	path := filepath.Join(l.outputDir, run.Id+ext)
	if err := os.WriteFile(path, image.Data, 0o644); err != nil {
		return "", fmt.Errorf("error writing image: %w", err)
	}
	return path, nil
}

func readInputs(path string, args []string) ([]string, error) {
	inputs := make([]string, 0, len(args))
	for _, arg := range args {
		if strings.TrimSpace(arg) != "" {
			inputs = append(inputs, arg)
		}
	}
	if path == "" {
		return inputs, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			inputs = append(inputs, line)
		}
	}
	return inputs, scanner.Err()
}

func runError(run api.PipelineRun) error {
	if run.Failure == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", pipeline.ErrRunFailed, run.Failure.Message)
}

func toWire(run pipeline.Run) api.PipelineRun {
	out := api.PipelineRun{
		Id:            run.ID,
		Input:         run.Input,
		Stage:         string(run.Stage),
		Status:        string(run.Status),
		Description:   run.Description,
		Specification: run.Specification,
		ImageURL:      run.ImageURL,
		Validation:    string(run.Validation),
	}
	if run.Failure != nil {
		out.Failure = &api.PipelineFailure{Stage: string(run.Failure.Stage), Code: run.Failure.Code, Message: run.Failure.Message}
	}
	return out
}

func printOutcome(res outcome, err error) {
	run := res.Run
	if run.Description != "" {
		fmt.Printf("\n[describer]\n%s\n", run.Description)
	}
	if run.Specification != "" {
		fmt.Printf("\n[interpreter]\n%s\n", run.Specification)
	}
	if res.ImagePath != "" {
		fmt.Printf("\n[executor] image written to %s (validation: %s)\n", res.ImagePath, run.Validation)
	}
	if err == nil {
		return
	}

	switch {
	case run.Failure != nil && (run.Failure.Code == gateway.CodeValidationFailed || run.Failure.Code == gateway.CodeRewriteFailed):
		fmt.Printf("\n✗ content policy violation at %s stage: %s\n", run.Failure.Stage, run.Failure.Message)
	case run.Failure != nil:
		fmt.Printf("\n✗ could not generate at %s stage [%s]: %s\n", run.Failure.Stage, run.Failure.Code, run.Failure.Message)
	case errors.Is(err, pipeline.ErrEmptyInput):
		fmt.Println("\n✗ input must not be empty")
	default:
		fmt.Printf("\n✗ %v\n", err)
	}
}
