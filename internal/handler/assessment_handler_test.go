package handler_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-selection-api/internal/dto"
)

const driveLink = "https://drive.google.com/file/d/1AbC_d-9/view?usp=sharing"

func analysis(score float64) map[string]interface{} {
	return map[string]interface{}{
		"content":       score,
		"communication": score,
		"technical":     score,
		"structure":     score,
		"engagement":    score,
		"feedback":      "clear walkthrough",
	}
}

func id(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func answers(pairs ...string) []map[string]string {
	out := make([]map[string]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, map[string]string{"question_id": pairs[i], "response": pairs[i+1]})
	}
	return out
}

// completeStudent submits a quiz attempt and a scored video for the student.
func completeStudent(t *testing.T, app *fiber.App, studentID, quizID uint, quizAnswers []map[string]string, videoScore float64) dto.VideoScoreResponse {
	t.Helper()
	who := student(studentID)

	status, env := call(t, app, &who, http.MethodPost, "/api/v2/assessment/quizzes/"+id(quizID)+"/attempts", map[string]interface{}{
		"answers": quizAnswers,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = call(t, app, &who, http.MethodPost, "/api/v2/assessment/videos", map[string]string{"video_url": driveLink})
	require.Equal(t, http.StatusCreated, status, env.Message)
	submission := decode[dto.VideoSubmissionResponse](t, env.Data)

	status, env = call(t, app, &staff, http.MethodPost, "/api/v2/assessment/videos/"+id(submission.ID)+"/analysis", analysis(videoScore))
	require.Equal(t, http.StatusOK, status, env.Message)
	return decode[dto.VideoScoreResponse](t, env.Data)
}

func TestAssessmentFlowThroughRelease(t *testing.T) {
	app := setupApp(t)
	ana := createStudent(t, app, "ana")
	ben := createStudent(t, app, "ben")
	quiz := createQuiz(t, app)

	anaScore := completeStudent(t, app, ana, quiz, answers("q1", "B", "q2", "true"), 80)
	require.Equal(t, 80.0, anaScore.Composite)
	require.Equal(t, "eligible", anaScore.Result.Status)
	require.Equal(t, 92.0, *anaScore.Result.FinalScore)

	benScore := completeStudent(t, app, ben, quiz, answers("q1", "B", "q2", "false"), 60)
	require.Equal(t, 54.0, *benScore.Result.FinalScore)

	status, env := call(t, app, &staff, http.MethodPost, "/api/v2/assessment/selection/runs", map[string]interface{}{
		"mode":  "count",
		"value": 1,
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	run := decode[dto.SelectionRunResponse](t, env.Data)
	require.Equal(t, 2, run.CandidateCount)
	require.Equal(t, []uint{ana}, run.SelectedIDs)

	anaCaller := student(ana)
	status, env = call(t, app, &anaCaller, http.MethodGet, "/api/v2/assessment/results/"+id(ana), nil)
	require.Equal(t, http.StatusOK, status)
	result := decode[dto.FinalResultResponse](t, env.Data)
	require.Equal(t, "selected", result.Status)
	require.Equal(t, 1, *result.Rank)

	status, _ = call(t, app, &anaCaller, http.MethodGet, "/api/v2/assessment/results/"+id(ben), nil)
	require.Equal(t, http.StatusForbidden, status)

	status, env = call(t, app, &staff, http.MethodGet, "/api/v2/assessment/results?status=rejected", nil)
	require.Equal(t, http.StatusOK, status)
	listed := decode[dto.ResultListResponse](t, env.Data)
	require.Len(t, listed.Items, 1)
	require.Equal(t, ben, listed.Items[0].StudentID)
	require.Equal(t, 1, listed.Counts["selected"])

	status, env = call(t, app, &staff, http.MethodGet, "/api/v2/assessment/selection/runs/latest", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, run.ID, decode[dto.SelectionRunResponse](t, env.Data).ID)

	status, env = call(t, app, &staff, http.MethodPost, "/api/v2/assessment/selection/release", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	released := decode[dto.SelectionRunResponse](t, env.Data)
	require.True(t, released.Released)

	status, _ = call(t, app, &staff, http.MethodPost, "/api/v2/assessment/selection/release", map[string]string{"run_id": run.ID})
	require.Equal(t, http.StatusConflict, status)

	status, env = call(t, app, &staff, http.MethodGet, "/api/v2/assessment/activity?page_size=5", nil)
	require.Equal(t, http.StatusOK, status)
	items := decode[[]dto.ActivityResponse](t, env.Data)
	require.Len(t, items, 5)
	meta := decode[dto.PaginationMeta](t, env.Meta)
	require.Equal(t, 5, meta.PageSize)
	require.GreaterOrEqual(t, meta.TotalItems, int64(10))

	status, _ = call(t, app, &anaCaller, http.MethodGet, "/api/v2/assessment/activity", nil)
	require.Equal(t, http.StatusForbidden, status)
}

func TestQuizHandlerScoreAndRegrade(t *testing.T) {
	app := setupApp(t)
	ana := createStudent(t, app, "ana")
	ben := createStudent(t, app, "ben")
	quiz := createQuiz(t, app)
	anaCaller := student(ana)

	status, env := call(t, app, &anaCaller, http.MethodPost, "/api/v2/assessment/quizzes/"+id(quiz)+"/attempts", map[string]interface{}{
		"answers": answers("q1", "B"),
	})
	require.Equal(t, http.StatusCreated, status, env.Message)
	attempt := decode[dto.QuizAttemptResponse](t, env.Data)
	require.Equal(t, 50.0, attempt.Score.Percentage)
	require.Equal(t, []string{"video"}, attempt.Result.Missing)

	status, _ = call(t, app, &anaCaller, http.MethodPost, "/api/v2/assessment/quizzes/"+id(quiz)+"/attempts", map[string]interface{}{
		"answers": answers("q1", "B", "q2", "true"),
	})
	require.Equal(t, http.StatusConflict, status)

	scorePath := "/api/v2/assessment/quizzes/attempts/" + id(attempt.AttemptID) + "/score"
	status, env = call(t, app, &anaCaller, http.MethodGet, scorePath, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 50.0, decode[dto.QuizScoreResponse](t, env.Data).Percentage)

	benCaller := student(ben)
	status, _ = call(t, app, &benCaller, http.MethodGet, scorePath, nil)
	require.Equal(t, http.StatusForbidden, status)

	regradePath := "/api/v2/assessment/quizzes/attempts/" + id(attempt.AttemptID) + "/regrade"
	status, _ = call(t, app, &anaCaller, http.MethodPost, regradePath, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, env = call(t, app, &staff, http.MethodPost, regradePath, nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	require.Equal(t, 50.0, decode[dto.QuizAttemptResponse](t, env.Data).Score.Percentage)
}

func TestHandlerErrorMapping(t *testing.T) {
	app := setupApp(t)
	ana := createStudent(t, app, "ana")
	anaCaller := student(ana)

	status, _ := call(t, app, nil, http.MethodGet, "/api/v2/assessment/results/"+id(ana), nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, &staff, http.MethodGet, "/api/v2/assessment/quizzes/abc", nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, app, &staff, http.MethodGet, "/api/v2/assessment/quizzes/999", nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, app, &staff, http.MethodGet, "/api/v2/assessment/results/"+id(ana), nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, app, &anaCaller, http.MethodPost, "/api/v2/assessment/selection/runs", map[string]interface{}{
		"mode":  "count",
		"value": 1,
	})
	require.Equal(t, http.StatusForbidden, status)

	status, env := call(t, app, &staff, http.MethodPost, "/api/v2/assessment/selection/runs", map[string]interface{}{
		"mode":  "random",
		"value": 1,
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "validation failed", env.Message)
	details := decode[[]struct {
		Field string `json:"field"`
	}](t, env.Details)
	require.Equal(t, "Mode", details[0].Field)

	status, env = call(t, app, &staff, http.MethodPost, "/api/v2/assessment/selection/runs", map[string]interface{}{
		"mode":  "percentage",
		"value": 1.5,
	})
	require.Equal(t, http.StatusBadRequest, status)
	details = decode[[]struct {
		Field string `json:"field"`
	}](t, env.Details)
	require.Equal(t, "percentage", details[0].Field)

	status, _ = call(t, app, &anaCaller, http.MethodPost, "/api/v2/assessment/videos", map[string]string{
		"video_url": "https://example.com/presentation.mp4",
	})
	require.Equal(t, http.StatusBadRequest, status)

	status, env = call(t, app, &anaCaller, http.MethodPost, "/api/v2/assessment/videos", map[string]string{"video_url": driveLink})
	require.Equal(t, http.StatusCreated, status)
	submission := decode[dto.VideoSubmissionResponse](t, env.Data)

	status, _ = call(t, app, &staff, http.MethodPost, "/api/v2/assessment/videos/"+id(submission.ID)+"/analyze", nil)
	require.Equal(t, http.StatusServiceUnavailable, status)

	status, env = call(t, app, &staff, http.MethodPost, "/api/v2/assessment/videos/"+id(submission.ID)+"/failed", map[string]string{
		"reason": "file is private",
	})
	require.Equal(t, http.StatusOK, status, env.Message)
	require.Equal(t, "failed", decode[dto.VideoSubmissionResponse](t, env.Data).Status)

	status, _ = call(t, app, &staff, http.MethodPost, "/api/v2/assessment/students", map[string]string{
		"name":  "ana",
		"email": "ana@example.com",
	})
	require.Equal(t, http.StatusConflict, status)

	status, env = call(t, app, &staff, http.MethodPost, "/api/v2/assessment/students/"+id(ana)+"/deactivate", nil)
	require.Equal(t, http.StatusOK, status, env.Message)

	status, _ = call(t, app, &anaCaller, http.MethodPost, "/api/v2/assessment/videos", map[string]string{"video_url": driveLink})
	require.Equal(t, http.StatusForbidden, status)
}
