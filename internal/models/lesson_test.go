package models

import "testing"

func TestLesson_VideoSource(t *testing.T) {
	url := func(s string) *string { return &s }

	tests := []struct {
		name   string
		lesson Lesson
		want   VideoSource
	}{
		{
			name:   "self hosted mp4",
			lesson: Lesson{ContentType: ContentVideo, VideoURL: url("https://cdn.example.com/lectures/houses.mp4")},
			want:   VideoSourceDirect,
		},
		{
			name:   "youtube watch link",
			lesson: Lesson{ContentType: ContentVideo, VideoURL: url("https://www.youtube.com/watch?v=abc")},
			want:   VideoSourceExternal,
		},
		{
			name:   "youtube short link",
			lesson: Lesson{ContentType: ContentVideo, VideoURL: url("https://youtu.be/abc")},
			want:   VideoSourceExternal,
		},
		{
			name:   "vimeo link",
			lesson: Lesson{ContentType: ContentVideo, VideoURL: url("https://vimeo.com/123456")},
			want:   VideoSourceExternal,
		},
		{
			name:   "host matching is case insensitive",
			lesson: Lesson{ContentType: ContentVideo, VideoURL: url("https://WWW.YOUTUBE.COM/watch?v=abc")},
			want:   VideoSourceExternal,
		},
		{
			name:   "video lesson without url",
			lesson: Lesson{ContentType: ContentVideo},
			want:   VideoSourceNone,
		},
		{
			name:   "empty url",
			lesson: Lesson{ContentType: ContentVideo, VideoURL: url("")},
			want:   VideoSourceNone,
		},
		{
			name:   "article never has a video source",
			lesson: Lesson{ContentType: ContentArticle, VideoURL: url("https://youtu.be/abc")},
			want:   VideoSourceNone,
		},
		{
			name:   "quiz never has a video source",
			lesson: Lesson{ContentType: ContentQuiz},
			want:   VideoSourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lesson.VideoSource(); got != tt.want {
				t.Errorf("VideoSource() = %v, want %v", got, tt.want)
			}
			wantEmbed := tt.want == VideoSourceExternal
			if got := tt.lesson.IsExternalEmbed(); got != wantEmbed {
				t.Errorf("IsExternalEmbed() = %v, want %v", got, wantEmbed)
			}
		})
	}
}

func TestCompletionRules_MinWatchPercentage(t *testing.T) {
	var rules CompletionRules
	if got := rules.MinWatchPercentage(); got != DefaultMinVideoWatchPercentage {
		t.Errorf("default threshold = %d, want %d", got, DefaultMinVideoWatchPercentage)
	}

	custom := 75
	rules.MinVideoWatchPercentage = &custom
	if got := rules.MinWatchPercentage(); got != 75 {
		t.Errorf("custom threshold = %d, want 75", got)
	}
}
