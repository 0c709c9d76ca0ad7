package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Seeds a running API with a demo studio: one teacher with pricing and
// weekday availability, two students, a single booking and a recurring
// series. Intended for local development and demo environments only.

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func main() {
	var (
		base    string
		token   string
		timeout time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&token, "token", "", "Admin bearer token")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if token == "" {
		log.Fatal("an admin token is required: -token <jwt>")
	}

	c := &client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
	}

	teacherID := c.createTeacher()
	log.Printf("teacher created: %s", teacherID)

	c.post(fmt.Sprintf("/teachers/%s/lesson-settings", teacherID), http.MethodPut, map[string]interface{}{
		"price_30_min": 3000,
		"price_60_min": 5500,
		"currency":     "USD",
	})
	log.Print("lesson settings configured")

	for day := 1; day <= 5; day++ {
		c.post(fmt.Sprintf("/teachers/%s/availability-windows", teacherID), http.MethodPost, map[string]interface{}{
			"day_of_week": day,
			"start":       "09:00",
			"end":         "17:00",
		})
	}
	log.Print("weekday availability 09:00-17:00 configured")

	studentA := c.createStudent(teacherID, "ada@example.com", "Ada Harris")
	studentB := c.createStudent(teacherID, "ben@example.com", "Ben Okafor")
	log.Printf("students created: %s, %s", studentA, studentB)

	nextMonday := upcomingWeekday(time.Monday).Add(15 * time.Hour)
	c.post("/lessons/book-for-student", http.MethodPost, map[string]interface{}{
		"teacherId": teacherID,
		"studentId": studentA,
		"date":      nextMonday.Format(time.RFC3339),
		"duration":  60,
		"type":      "single",
	})
	log.Printf("single lesson booked for %s", nextMonday.Format(time.RFC3339))

	nextWednesday := upcomingWeekday(time.Wednesday).Add(14 * time.Hour)
	c.post("/lessons/book-for-student", http.MethodPost, map[string]interface{}{
		"teacherId":      teacherID,
		"studentId":      studentB,
		"date":           nextWednesday.Format(time.RFC3339),
		"duration":       30,
		"type":           "recurring",
		"recurringWeeks": 8,
	})
	log.Printf("recurring series booked starting %s", nextWednesday.Format(time.RFC3339))

	fmt.Println("Seed complete.")
	fmt.Printf("  teacher: %s\n", teacherID)
	fmt.Printf("  students: %s, %s\n", studentA, studentB)
}

func (c *client) createTeacher() string {
	data := c.post("/teachers", http.MethodPost, map[string]interface{}{
		"email":      fmt.Sprintf("demo-teacher-%d@example.com", time.Now().Unix()),
		"full_name":  "Demo Teacher",
		"timezone":   "America/Chicago",
		"instrument": "piano",
	})
	return extractID(data)
}

func (c *client) createStudent(teacherID, email, name string) string {
	data := c.post("/students", http.MethodPost, map[string]interface{}{
		"teacher_id": teacherID,
		"email":      email,
		"full_name":  name,
	})
	return extractID(data)
}

func (c *client) post(path, method string, payload map[string]interface{}) json.RawMessage {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("marshal payload for %s: %v", path, err)
	}

	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("build request for %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("read response for %s: %v", path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Fatalf("%s %s returned %d with unparseable body: %s", method, path, resp.StatusCode, raw)
	}
	if resp.StatusCode >= 400 {
		if env.Error != nil {
			log.Fatalf("%s %s failed: %d %s %s", method, path, resp.StatusCode, env.Error.Code, env.Error.Message)
		}
		log.Fatalf("%s %s failed with status %d", method, path, resp.StatusCode)
	}
	return env.Data
}

func extractID(data json.RawMessage) string {
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil || obj.ID == "" {
		log.Fatalf("response missing id: %s", data)
	}
	return obj.ID
}

// upcomingWeekday returns the next occurrence of the weekday at UTC midnight,
// at least one day out so bookings land in the future.
func upcomingWeekday(day time.Weekday) time.Time {
	now := time.Now().UTC()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for {
		date = date.AddDate(0, 0, 1)
		if date.Weekday() == day {
			return date
		}
	}
}
