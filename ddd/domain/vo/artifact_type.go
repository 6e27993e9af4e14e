package vo

// ArtifactType 可下载的产物类型
type ArtifactType string

const (
	ArtifactScript    ArtifactType = "script"
	ArtifactAudio     ArtifactType = "audio"
	ArtifactThumbnail ArtifactType = "thumbnail"
	ArtifactVideo     ArtifactType = "video"
)

type artifactSpec struct {
	dir         string
	ext         string
	contentType string
}

var artifactSpecs = map[ArtifactType]artifactSpec{
	ArtifactScript:    {dir: "scripts", ext: ".txt", contentType: "text/plain"},
	ArtifactAudio:     {dir: "audio", ext: ".mp3", contentType: "audio/mpeg"},
	ArtifactThumbnail: {dir: "thumbnails", ext: ".png", contentType: "image/png"},
	ArtifactVideo:     {dir: "videos", ext: ".mp4", contentType: "video/mp4"},
}

// ParseArtifactType 解析产物类型
func ParseArtifactType(s string) (ArtifactType, bool) {
	t := ArtifactType(s)
	_, ok := artifactSpecs[t]
	return t, ok
}

func (t ArtifactType) Dir() string         { return artifactSpecs[t].dir }
func (t ArtifactType) Extension() string   { return artifactSpecs[t].ext }
func (t ArtifactType) ContentType() string { return artifactSpecs[t].contentType }
