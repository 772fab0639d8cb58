package blockfile_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/dayflow/internal/adapters/blockfile"
	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/blocks"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
)

func day(codes ...activity.Category) blocks.Array { return blocks.Array(codes) }

func header(blocksPerDay uint32, days uint64) []byte {
	b := make([]byte, blockfile.HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], blocksPerDay)
	binary.LittleEndian.PutUint64(b[4:12], days)
	return b
}

func TestEncodeLayout(t *testing.T) {
	var buf bytes.Buffer
	days := []blocks.Array{
		make(blocks.Array, 24),
		make(blocks.Array, 24),
	}
	days[0][0] = activity.Work
	days[1][23] = activity.Sentinel

	n, err := blockfile.Encode(&buf, 24, days)
	require.NoError(t, err)
	require.EqualValues(t, blockfile.HeaderSize+48, n)

	raw := buf.Bytes()
	require.Equal(t, header(24, 2), raw[:blockfile.HeaderSize])
	require.Equal(t, byte(activity.Work), raw[blockfile.HeaderSize])
	require.Equal(t, byte(20), raw[len(raw)-1])
}

func TestRoundTrip(t *testing.T) {
	Convey("Given block arrays for three days", t, func() {
		l, err := blocks.NewLayout(360)
		So(err, ShouldBeNil)
		days := []blocks.Array{
			day(activity.Sleeping, activity.Work, activity.Leisure, activity.Sleeping),
			day(activity.Sentinel, activity.Sentinel, activity.Sentinel, activity.Sentinel),
			day(activity.Travel, activity.Calls, activity.EatingDrinking, activity.Exercise),
		}

		Convey("When encoded to a file and decoded", func() {
			path := filepath.Join(t.TempDir(), "days"+blockfile.Extension)
			So(blockfile.WriteFile(path, l.BlocksPerDay(), days), ShouldBeNil)

			h, got, err := blockfile.ReadFile(path)

			Convey("Then the arrays are identical", func() {
				So(err, ShouldBeNil)
				So(h.BlocksPerDay, ShouldEqual, 4)
				So(h.DayCount, ShouldEqual, 3)
				So(got, ShouldResemble, days)

				info, err := os.Stat(path)
				So(err, ShouldBeNil)
				So(info.Size(), ShouldEqual, h.Size())
			})
		})

		Convey("When streamed through a Reader", func() {
			var buf bytes.Buffer
			_, err := blockfile.Encode(&buf, 4, days)
			So(err, ShouldBeNil)

			r, err := blockfile.NewReader(&buf)
			So(err, ShouldBeNil)
			So(r.Layout().Minutes(), ShouldEqual, 360)

			var got []blocks.Array
			for {
				arr, err := r.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				So(err, ShouldBeNil)
				got = append(got, arr)
			}
			So(got, ShouldResemble, days)
		})

		Convey("When a day has the wrong length", func() {
			bad := append([]blocks.Array{}, days...)
			bad[1] = day(activity.Work)
			_, err := blockfile.Encode(io.Discard, 4, bad)
			So(errors.Is(err, blocks.ErrShapeMismatch), ShouldBeTrue)
		})
	})
}

func TestDecodeFailures(t *testing.T) {
	Convey("Given malformed block files", t, func() {
		Convey("When the header declares two days but only one is present", func() {
			data := append(header(4, 2), 0, 1, 2, 3)
			_, days, err := blockfile.Decode(bytes.NewReader(data))

			Convey("Then decoding fails with a truncation error and no partial data", func() {
				So(days, ShouldBeNil)
				So(errors.Is(err, blockfile.ErrTruncatedFile), ShouldBeTrue)
				var te *blockfile.TruncatedError
				So(errors.As(err, &te), ShouldBeTrue)
				So(te.Day, ShouldEqual, 1)
				So(te.Expected, ShouldEqual, 4)
				So(te.Actual, ShouldEqual, 0)
			})
		})

		Convey("When the last row is cut short", func() {
			data := append(header(4, 1), 0, 1)
			_, _, err := blockfile.Decode(bytes.NewReader(data))
			var te *blockfile.TruncatedError
			So(errors.As(err, &te), ShouldBeTrue)
			So(te.Actual, ShouldEqual, 2)
		})

		Convey("When the header itself is short", func() {
			_, _, err := blockfile.Decode(bytes.NewReader([]byte{1, 2, 3}))
			var te *blockfile.TruncatedError
			So(errors.As(err, &te), ShouldBeTrue)
			So(te.Day, ShouldEqual, -1)
		})

		Convey("When a truncated file is read from disk", func() {
			path := filepath.Join(t.TempDir(), "short.ablk")
			So(os.WriteFile(path, append(header(4, 3), 0, 0, 0, 0), 0o600), ShouldBeNil)
			_, _, err := blockfile.ReadFile(path)
			So(errors.Is(err, blockfile.ErrTruncatedFile), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, path)
		})

		Convey("When blocks per day does not divide a day", func() {
			_, _, err := blockfile.Decode(bytes.NewReader(header(7, 0)))
			So(errors.Is(err, blockfile.ErrInvalidHeader), ShouldBeTrue)
		})

		Convey("When a row holds a code past the sentinel", func() {
			data := append(header(4, 1), 0, 1, 99, 3)
			_, _, err := blockfile.Decode(bytes.NewReader(data))
			So(errors.Is(err, blockfile.ErrCorrupt), ShouldBeTrue)
		})

		Convey("When the file does not exist", func() {
			_, _, err := blockfile.ReadFile(filepath.Join(t.TempDir(), "missing.ablk"))
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})

		Convey("When the output path cannot be created", func() {
			err := blockfile.WriteFile(filepath.Join(t.TempDir(), "no", "such", "dir.ablk"), 4, nil)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestEmptyFile(t *testing.T) {
	var buf bytes.Buffer
	_, err := blockfile.Encode(&buf, 96, nil)
	require.NoError(t, err)

	h, days, err := blockfile.Decode(&buf)
	require.NoError(t, err)
	require.EqualValues(t, 96, h.BlocksPerDay)
	require.Zero(t, h.DayCount)
	require.Empty(t, days)
}
