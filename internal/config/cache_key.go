package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AssessmentContentKey holds the full question content of an assessment,
// correctness flags included. Never sent to students as-is.
func (r *CacheKeyStruct) AssessmentContentKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:content", assessmentID)
}

// AssessmentMonitorChannel is the Redis PubSub channel for live session events.
func (r *CacheKeyStruct) AssessmentMonitorChannel(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:monitor", assessmentID)
}

// StudentAttemptsKey counts finalized attempts of a student on an assessment.
func (r *CacheKeyStruct) StudentAttemptsKey(assessmentID string, studentID int) string {
	return fmt.Sprintf("student:%d:assessment:%s:attempts", studentID, assessmentID)
}

// StudentAnswersKey mirrors the answers of a running session.
func (r *CacheKeyStruct) StudentAnswersKey(assessmentID string, studentID int) string {
	return fmt.Sprintf("student:%d:assessment:%s:answers", studentID, assessmentID)
}

// StudentActiveQuizKey points at the assessment a student is currently taking.
func (r *CacheKeyStruct) StudentActiveQuizKey(studentID int) string {
	return fmt.Sprintf("student:%d:active_quiz", studentID)
}

var CacheKey = NewCacheKeyStruct()
