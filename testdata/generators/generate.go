// Command generate produces sample input files for manual testing of
// the reconciler CLI: a chat message export with bank transfer
// notifications, a matching calendar CSV and a payer whitelist.
//
// Usage:
//
//	go run generate.go -output-dir ../generated -students 8 -weeks 4 -seed 1
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

// student pairs a roster name with the payer who shows up in the bank
// notifications. A few payers are left empty to produce unmatched
// payments for the suggestion workflow.
type student struct {
	Name  string
	Payer string
}

var roster = []student{
	{"Sofia", "СОФЬЯ П."},
	{"Daria", "ДАРЬЯ М."},
	{"Ekaterina", "ЕКАТЕРИНА А."},
	{"Maria", "МАРИЯ К."},
	{"Anna", "АННА С."},
	{"Nikita", "ОЛЬГА В."},
	{"Polina", ""},
	{"Mikhail", "ТАТЬЯНА Б."},
}

type message struct {
	Channel   int64  `json:"channel"`
	MessageID int64  `json:"message_id"`
	Day       string `json:"day"`
	Text      string `json:"text"`
}

func main() {
	var (
		outputDir = flag.String("output-dir", "../generated", "Output directory for generated files")
		students  = flag.Int("students", len(roster), "Number of students to include")
		weeks     = flag.Int("weeks", 4, "Number of weekly lessons per student")
		startDay  = flag.String("start-day", "2024-03-04", "First lesson day (YYYY-MM-DD)")
		cost      = flag.Int64("cost", 2000, "Lesson cost")
		noise     = flag.Int("noise", 3, "Number of non-transfer messages to mix in")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
	)
	flag.Parse()

	if *students > len(roster) {
		*students = len(roster)
	}

	start, err := time.Parse("2006-01-02", *startDay)
	if err != nil {
		log.Fatalf("Invalid start day: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	lessonCost := decimal.NewFromInt(*cost)

	if err := writeCalendar(filepath.Join(*outputDir, "calendar.csv"), *students, *weeks, start, lessonCost); err != nil {
		log.Fatalf("Failed to write calendar: %v", err)
	}
	messages := buildMessages(rng, *students, *weeks, start, lessonCost, *noise)
	if err := writeMessages(filepath.Join(*outputDir, "messages.json"), messages); err != nil {
		log.Fatalf("Failed to write messages: %v", err)
	}
	if err := writeWhitelist(filepath.Join(*outputDir, "whitelist.csv"), *students); err != nil {
		log.Fatalf("Failed to write whitelist: %v", err)
	}

	fmt.Printf("Generated %d students, %d lessons, %d messages in %s\n",
		*students, *students**weeks, len(messages), *outputDir)
	fmt.Printf("Seed used: %d\n", *seed)
}

func writeCalendar(path string, students, weeks int, start time.Time, cost decimal.Decimal) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"event_id", "student", "date", "time", "cost"}); err != nil {
		return err
	}

	for i := 0; i < students; i++ {
		for w := 0; w < weeks; w++ {
			day := start.AddDate(0, 0, w*7+i%5)
			record := []string{
				fmt.Sprintf("evt_%d_%d", i, w),
				roster[i].Name,
				day.Format("2006-01-02"),
				fmt.Sprintf("%02d:00", 14+i%5),
				cost.String(),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	return writer.Error()
}

func buildMessages(rng *rand.Rand, students, weeks int, start time.Time, cost decimal.Decimal, noise int) []message {
	var messages []message
	id := int64(100)

	for i := 0; i < students; i++ {
		payer := roster[i].Payer
		if payer == "" {
			continue
		}

		// Most payers pay per lesson; every third buys a bundle up front.
		if i%3 == 2 {
			id++
			day := start.AddDate(0, 0, i%5)
			messages = append(messages, message{
				Channel:   42,
				MessageID: id,
				Day:       day.Format("2006-01-02"),
				Text: fmt.Sprintf("СЧЁТ%d %02d:%02d Перевод 10 500р от %s Баланс: %dр",
					1000+rng.Intn(9000), 9+rng.Intn(12), rng.Intn(60), payer, 10000+rng.Intn(90000)),
			})
			continue
		}

		for w := 0; w < weeks; w++ {
			id++
			day := start.AddDate(0, 0, w*7+i%5)
			messages = append(messages, message{
				Channel:   42,
				MessageID: id,
				Day:       day.Format("2006-01-02"),
				Text: fmt.Sprintf("СЧЁТ%d %02d:%02d Перевод %sр от %s Баланс: %dр",
					1000+rng.Intn(9000), 9+rng.Intn(12), rng.Intn(60), cost.String(), payer, 10000+rng.Intn(90000)),
			})
		}
	}

	for n := 0; n < noise; n++ {
		id++
		messages = append(messages, message{
			Channel:   42,
			MessageID: id,
			Day:       start.Format("2006-01-02"),
			Text:      "Вам доступен новый кэшбэк, выберите категории в приложении",
		})
	}

	return messages
}

func writeMessages(path string, messages []message) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(messages)
}

func writeWhitelist(path string, students int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"nome_pagante", "studente"}); err != nil {
		return err
	}
	for i := 0; i < students; i++ {
		if roster[i].Payer == "" {
			continue
		}
		if err := writer.Write([]string{roster[i].Payer, "1"}); err != nil {
			return err
		}
	}
	// A landlord transfer that must never become a payment.
	if err := writer.Write([]string{"Арендодатель", "0"}); err != nil {
		return err
	}

	return writer.Error()
}
