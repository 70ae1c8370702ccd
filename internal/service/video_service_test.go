package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-selection-api/internal/dto"
	"github.com/noah-isme/gema-selection-api/internal/models"
	"github.com/noah-isme/gema-selection-api/internal/repository"
	"github.com/noah-isme/gema-selection-api/internal/scoring"
	"github.com/noah-isme/gema-selection-api/pkg/ai"
)

const driveLink = "https://drive.google.com/file/d/1AbC_d-9/view?usp=sharing"

type videoAnalyzerFunc func(ctx context.Context, input ai.VideoAnalysisInput) (ai.VideoAnalysis, error)

func (f videoAnalyzerFunc) Analyze(ctx context.Context, input ai.VideoAnalysisInput) (ai.VideoAnalysis, error) {
	return f(ctx, input)
}

type videoStorageStub struct {
	uploaded bytes.Buffer
	name     string
}

func (s *videoStorageStub) UploadVideo(ctx context.Context, name string, reader io.Reader) (string, string, error) {
	s.uploaded.Reset()
	if _, err := s.uploaded.ReadFrom(reader); err != nil {
		return "", "", err
	}
	s.name = name
	return "https://res.cloudinary.com/demo/video/upload/" + name, "gema/videos/" + name, nil
}

func uniformAnalysis(v float64) dto.VideoAnalysisRequest {
	return dto.VideoAnalysisRequest{
		Content:       floatPtr(v),
		Communication: floatPtr(v),
		Technical:     floatPtr(v),
		Structure:     floatPtr(v),
		Engagement:    floatPtr(v),
	}
}

func TestDriveFileID(t *testing.T) {
	for link, expected := range map[string]string{
		driveLink: "1AbC_d-9",
		"https://drive.google.com/open?id=xyz123":                 "xyz123",
		"https://docs.google.com/presentation/d/slides_1/edit":    "slides_1",
		"https://drive.google.com/file/d/abc/view#heading=h.test": "abc",
	} {
		id, ok := DriveFileID(link)
		require.True(t, ok, link)
		require.Equal(t, expected, id)
	}

	for _, link := range []string{
		"https://youtube.com/watch?v=1",
		"http://drive.google.com/file/d/abc",
		"https://evil.example.com/?u=https://drive.google.com/file/d/abc",
	} {
		_, ok := DriveFileID(link)
		require.False(t, ok, link)
	}
}

func TestVideoSubmitRegistersPendingSubmission(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	student := env.seedStudent(t, "ana")
	svc := env.videoService(nil, nil, 0)
	actor := NewActor(student.ID, RoleStudent)

	resp, err := svc.Submit(context.Background(), actor, dto.VideoSubmitRequest{VideoURL: driveLink, Topic: " Go concurrency "})
	require.NoError(t, err)
	require.Equal(t, models.VideoStatusPending, resp.Status)
	require.Equal(t, "1AbC_d-9", resp.ExternalID)
	require.Equal(t, "Go concurrency", resp.Topic)
	require.Equal(t, student.ID, resp.StudentID)

	_, err = svc.Submit(context.Background(), actor, dto.VideoSubmitRequest{VideoURL: "https://vimeo.com/1"})
	require.ErrorIs(t, err, ErrInvalidVideoLink)

	_, err = svc.Submit(context.Background(), actor, dto.VideoSubmitRequest{VideoURL: "not a url"})
	require.Error(t, err)

	got, err := svc.Get(context.Background(), NewActor(99, RoleStudent), resp.ID)
	require.ErrorIs(t, err, ErrForbidden)
	require.Zero(t, got.ID)

	_, err = svc.Get(context.Background(), admin, 999)
	require.ErrorIs(t, err, ErrVideoNotFound)
}

func TestVideoRecordAnalysisCompletesFinalResult(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	student := env.seedStudent(t, "ana")
	quiz := env.seedQuiz(t)
	video := env.videoService(nil, nil, 0)
	actor := NewActor(student.ID, RoleStudent)

	_, err := env.gradingService().Submit(context.Background(), actor, quiz.ID, dto.QuizAttemptRequest{
		Answers: answers("q1", "B", "q2", "true", "q4", modelAnswer),
	})
	require.NoError(t, err)

	submission, err := video.Submit(context.Background(), actor, dto.VideoSubmitRequest{VideoURL: driveLink})
	require.NoError(t, err)

	_, err = video.RecordAnalysis(context.Background(), actor, submission.ID, uniformAnalysis(70))
	require.ErrorIs(t, err, ErrForbidden)

	req := uniformAnalysis(70)
	req.Feedback = "<b>Clear</b> delivery"
	scored, err := video.RecordAnalysis(context.Background(), admin, submission.ID, req)
	require.NoError(t, err)
	require.Equal(t, 70.0, scored.Composite)
	require.Equal(t, "Clear delivery", scored.Feedback)
	require.Equal(t, string(scoring.StatusEligible), scored.Result.Status)
	require.Equal(t, 76.0, *scored.Result.FinalScore)
	require.Empty(t, scored.Result.Missing)

	stored, err := video.Get(context.Background(), actor, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.VideoStatusAnalyzed, stored.Status)
	require.NotNil(t, stored.AnalyzedAt)
}

func TestVideoRecordAnalysisRejectsOutOfRange(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	student := env.seedStudent(t, "ana")
	video := env.videoService(nil, nil, 0)

	submission, err := video.Submit(context.Background(), NewActor(student.ID, RoleStudent), dto.VideoSubmitRequest{VideoURL: driveLink})
	require.NoError(t, err)

	req := uniformAnalysis(50)
	req.Structure = floatPtr(101)
	_, err = video.RecordAnalysis(context.Background(), admin, submission.ID, req)
	require.ErrorIs(t, err, scoring.ErrOutOfRangeScore)

	var verr *scoring.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, string(scoring.CriterionStructure), verr.Field)

	missing := uniformAnalysis(50)
	missing.Engagement = nil
	_, err = video.RecordAnalysis(context.Background(), admin, submission.ID, missing)
	require.Error(t, err)

	result, err := env.ledger.Get(context.Background(), student.ID)
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestVideoAnalyzeUsesAnalyzer(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	student := env.seedStudent(t, "ana")

	var seen ai.VideoAnalysisInput
	analyzer := videoAnalyzerFunc(func(ctx context.Context, input ai.VideoAnalysisInput) (ai.VideoAnalysis, error) {
		seen = input
		return ai.VideoAnalysis{Content: 80, Communication: 70, Technical: 60, Structure: 90, Engagement: 100, Feedback: "solid"}, nil
	})
	video := env.videoService(nil, analyzer, 0)

	submission, err := video.Submit(context.Background(), NewActor(student.ID, RoleStudent), dto.VideoSubmitRequest{VideoURL: driveLink, Topic: "channels"})
	require.NoError(t, err)

	scored, err := video.Analyze(context.Background(), admin, submission.ID, dto.VideoAnalyzeRequest{Transcript: "hello"})
	require.NoError(t, err)
	require.Equal(t, 77.0, scored.Composite)
	require.Equal(t, "solid", scored.Feedback)
	require.Equal(t, string(scoring.StatusNotEligible), scored.Result.Status)
	require.Equal(t, []string{"quiz"}, scored.Result.Missing)

	require.Equal(t, submission.ID, seen.SubmissionID)
	require.Equal(t, "channels", seen.Topic)
	require.Equal(t, "hello", seen.Transcript)
}

func TestVideoAnalyzeFailureMarksSubmissionFailed(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	student := env.seedStudent(t, "ana")
	actor := NewActor(student.ID, RoleStudent)

	calls := 0
	analyzer := videoAnalyzerFunc(func(ctx context.Context, input ai.VideoAnalysisInput) (ai.VideoAnalysis, error) {
		calls++
		if calls == 1 {
			return ai.VideoAnalysis{Content: 50, Communication: 50, Technical: 50, Structure: 50, Engagement: 50}, nil
		}
		return ai.VideoAnalysis{}, errors.New("model timeout")
	})
	video := env.videoService(nil, analyzer, 0)

	submission, err := video.Submit(context.Background(), actor, dto.VideoSubmitRequest{VideoURL: driveLink})
	require.NoError(t, err)

	_, err = video.Analyze(context.Background(), admin, submission.ID, dto.VideoAnalyzeRequest{})
	require.NoError(t, err)
	before, err := env.ledger.Get(context.Background(), student.ID)
	require.NoError(t, err)
	require.Equal(t, 50.0, *before.VideoScore)

	_, err = video.Analyze(context.Background(), admin, submission.ID, dto.VideoAnalyzeRequest{})
	require.ErrorIs(t, err, ErrAnalysisFailed)
	require.Contains(t, err.Error(), "model timeout")

	stored, err := video.Get(context.Background(), actor, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.VideoStatusFailed, stored.Status)
	require.Equal(t, "model timeout", stored.FailureReason)

	after, err := env.ledger.Get(context.Background(), student.ID)
	require.NoError(t, err)
	require.Nil(t, after.VideoScore)
	require.Equal(t, string(scoring.StatusNotEligible), after.Status)
}

func TestVideoAnalyzeOutOfRangeOutputFails(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	student := env.seedStudent(t, "ana")
	analyzer := videoAnalyzerFunc(func(ctx context.Context, input ai.VideoAnalysisInput) (ai.VideoAnalysis, error) {
		return ai.VideoAnalysis{Content: 120, Communication: 50, Technical: 50, Structure: 50, Engagement: 50}, nil
	})
	video := env.videoService(nil, analyzer, 0)

	submission, err := video.Submit(context.Background(), NewActor(student.ID, RoleStudent), dto.VideoSubmitRequest{VideoURL: driveLink})
	require.NoError(t, err)

	_, err = video.Analyze(context.Background(), admin, submission.ID, dto.VideoAnalyzeRequest{})
	require.ErrorIs(t, err, ErrAnalysisFailed)

	stored, err := env.videos.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.VideoStatusFailed, stored.Status)
}

func TestVideoAnalyzeWithoutAnalyzer(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	video := env.videoService(nil, nil, 0)

	_, err := video.Analyze(context.Background(), admin, 1, dto.VideoAnalyzeRequest{})
	require.ErrorIs(t, err, ErrAnalyzerUnavailable)
}

func TestVideoMarkFailedSanitisesReason(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	student := env.seedStudent(t, "ana")
	video := env.videoService(nil, nil, 0)

	submission, err := video.Submit(context.Background(), NewActor(student.ID, RoleStudent), dto.VideoSubmitRequest{VideoURL: driveLink})
	require.NoError(t, err)

	_, err = video.MarkFailed(context.Background(), NewActor(student.ID, RoleStudent), submission.ID, dto.VideoFailedRequest{Reason: "broken"})
	require.ErrorIs(t, err, ErrForbidden)

	resp, err := video.MarkFailed(context.Background(), admin, submission.ID, dto.VideoFailedRequest{Reason: "<script>x</script>file is private"})
	require.NoError(t, err)
	require.Equal(t, models.VideoStatusFailed, resp.Status)
	require.Equal(t, "file is private", resp.FailureReason)

	_, err = video.MarkFailed(context.Background(), admin, 999, dto.VideoFailedRequest{Reason: "missing"})
	require.ErrorIs(t, err, ErrVideoNotFound)
}

func TestVideoMarkFailedKeepsScoreWhenCommitFails(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	student := env.seedStudent(t, "ana")
	video := env.videoService(nil, nil, 0)

	submission, err := video.Submit(context.Background(), NewActor(student.ID, RoleStudent), dto.VideoSubmitRequest{VideoURL: driveLink})
	require.NoError(t, err)
	scored, err := video.RecordAnalysis(context.Background(), admin, submission.ID, uniformAnalysis(70))
	require.NoError(t, err)

	_, err = env.withBrokenLedger().videoService(nil, nil, 0).MarkFailed(context.Background(), admin, submission.ID, dto.VideoFailedRequest{Reason: "file is private"})
	require.ErrorIs(t, err, errCommitFailed)

	stored, err := env.videos.GetByID(context.Background(), submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.VideoStatusAnalyzed, stored.Status)
	require.Empty(t, stored.FailureReason)

	result, err := env.ledger.Get(context.Background(), student.ID)
	require.NoError(t, err)
	require.NotNil(t, result.VideoScore)
	require.Equal(t, 70.0, *result.VideoScore)
	require.Equal(t, scored.Result.Version, result.Version)
}

func TestVideoUploadValidation(t *testing.T) {
	env := newTestEnv(t, repository.AttemptPolicyReject)
	student := env.seedStudent(t, "ana")
	actor := NewActor(student.ID, RoleStudent)

	_, err := env.videoService(nil, nil, 1).Upload(context.Background(), actor, 0, "", buildFileHeader(t, "talk.mp4", mp4Header()))
	require.ErrorIs(t, err, ErrStorageUnavailable)

	storage := &videoStorageStub{}
	svc := env.videoService(storage, nil, 1)

	_, err = svc.Upload(context.Background(), actor, 0, "", buildFileHeader(t, "big.mp4", append(mp4Header(), bytes.Repeat([]byte{0}, 2*1024*1024)...)))
	require.ErrorIs(t, err, ErrUploadTooLarge)

	_, err = svc.Upload(context.Background(), actor, 0, "", buildFileHeader(t, "notes.txt", []byte("plain text")))
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)

	resp, err := svc.Upload(context.Background(), actor, 0, "demo", buildFileHeader(t, "talk.mp4", mp4Header()))
	require.NoError(t, err)
	require.Equal(t, "talk.mp4", storage.name)
	require.Equal(t, mp4Header(), storage.uploaded.Bytes())
	require.Contains(t, resp.VideoURL, "res.cloudinary.com")
	require.Equal(t, "gema/videos/talk.mp4", resp.ExternalID)
	require.Equal(t, models.VideoStatusPending, resp.Status)
}

// mp4Header is the smallest ftyp box recognised as video/mp4.
func mp4Header() []byte {
	return []byte{
		0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
		'm', 'p', '4', '2', 0x00, 0x00, 0x00, 0x00,
		'm', 'p', '4', '2', 'i', 's', 'o', 'm',
	}
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content)) + 1024)
	require.NoError(t, err)
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
