package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// seedFile is the JSON layout accepted by -file.
type seedFile struct {
	Assessment model.Assessment `json:"assessment"`
	Questions  []model.Question `json:"questions"`
}

func main() {
	var (
		file    string
		classID int
		draft   bool
	)
	flag.StringVar(&file, "file", "", "JSON file with an assessment and its questions (default: built-in demo)")
	flag.IntVar(&classID, "class", 0, "Restrict the assessment to a class ID (0 = every class)")
	flag.BoolVar(&draft, "draft", false, "Leave the assessment unpublished")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	seed := demoSeed()
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("Failed to read seed file")
		}
		seed = seedFile{}
		if err := json.Unmarshal(raw, &seed); err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("Failed to parse seed file")
		}
	}
	if classID > 0 {
		seed.Assessment.ClassID = &classID
	}

	if err := validator.Struct(&seed.Assessment); err != nil {
		log.Fatal().Interface("fields", validator.TranslateErrors(err)).Msg("Invalid assessment")
	}
	for i := range seed.Questions {
		if err := validator.Struct(&seed.Questions[i]); err != nil {
			log.Fatal().Int("question", i+1).Interface("fields", validator.TranslateErrors(err)).Msg("Invalid question")
		}
		if !seed.Questions[i].HasCorrectChoice() {
			log.Fatal().Int("question", i+1).Msg("Question has no correct choice")
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	assessmentRepo := repository.NewAssessmentRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)

	seed.Assessment.Status = model.AssessmentStatusDraft
	if err := assessmentRepo.Create(ctx, &seed.Assessment); err != nil {
		log.Fatal().Err(err).Msg("Failed to create assessment")
	}

	for i := range seed.Questions {
		q := &seed.Questions[i]
		q.AssessmentID = seed.Assessment.ID
		q.OrderNum = i + 1
		for j := range q.Choices {
			q.Choices[j].OrderNum = j + 1
		}
		if err := questionRepo.CreateWithChoices(ctx, q); err != nil {
			log.Fatal().Err(err).Int("question", i+1).Msg("Failed to create question")
		}
	}

	fmt.Printf("Created assessment %q (%s) with %d questions\n", seed.Assessment.Title, seed.Assessment.ID, len(seed.Questions))

	if draft {
		return
	}

	if err := assessmentRepo.UpdateStatus(ctx, seed.Assessment.ID, model.AssessmentStatusPublished); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish assessment")
	}
	seed.Assessment.Status = model.AssessmentStatusPublished

	// Warming is best effort; the server re-warms lazily on first read.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, cache not warmed")
		return
	}
	defer rdb.Close()

	attemptRepo := repository.NewAttemptRepository(pool)
	catalog := service.NewCatalogService(assessmentRepo, questionRepo, attemptRepo, rdb, log)
	if err := catalog.WarmCache(ctx, &seed.Assessment); err != nil {
		log.Warn().Err(err).Msg("Cache warm failed")
	}

	fmt.Println("Published")
}

func demoSeed() seedFile {
	return seedFile{
		Assessment: model.Assessment{
			Title:           "General Science Warm-up",
			Category:        "science",
			Difficulty:      "easy",
			DurationSeconds: 300,
			MaxAttempts:     3,
		},
		Questions: []model.Question{
			{Prompt: "What is the chemical symbol for water?", Choices: []model.Choice{
				{Body: "H2O", IsCorrect: true},
				{Body: "CO2"},
				{Body: "O2"},
			}},
			{Prompt: "Which planet is known as the Red Planet?", Choices: []model.Choice{
				{Body: "Venus"},
				{Body: "Mars", IsCorrect: true},
				{Body: "Jupiter"},
			}},
			{Prompt: "What force keeps planets in orbit around the Sun?", Choices: []model.Choice{
				{Body: "Magnetism"},
				{Body: "Friction"},
				{Body: "Gravity", IsCorrect: true},
			}},
			{Prompt: "At sea level, water boils at how many degrees Celsius?", Choices: []model.Choice{
				{Body: "90"},
				{Body: "100", IsCorrect: true},
			}},
		},
	}
}
