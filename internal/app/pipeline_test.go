package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	service "github.com/okian/dayflow/internal/app"
	"github.com/okian/dayflow/internal/adapters/blockfile"
	"github.com/okian/dayflow/internal/adapters/repository"
	"github.com/okian/dayflow/internal/adapters/tabular"
	"github.com/okian/dayflow/internal/adapters/worker"
	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/blocks"
	"github.com/okian/dayflow/internal/domain/survey"
	"github.com/okian/dayflow/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// Two respondents: serial 2 sleeps then works, serial 1 sleeps then relaxes.
// The 900000 code has no category and is dropped.
const rawCSV = `YEAR,CASEID,SERIAL,FAMINCOME,HHTENURE,HOUSETYPE,PERNUM,LINENO,WT06,SCHLCOLL,ACTIVITY,START,STOP
2005,1,2,1,1,1,1,1,1.5,0,10101,00:00:00,06:00:00
2005,1,2,1,1,1,1,2,1.5,0,50101,06:00:00,18:00:00
2005,1,2,1,1,1,1,3,1.5,0,10101,18:00:00,00:00:00
2005,2,1,1,1,1,1,1,1.5,0,10101,00:00:00,12:00:00
2005,2,1,1,1,1,1,2,1.5,0,120301,12:00:00,23:00:00
2005,2,1,1,1,1,1,3,1.5,0,900000,23:00:00,23:30:00
`

func testPipeline(t *testing.T, opts ...service.PipelineOption) *service.Pipeline {
	t.Helper()
	l, err := blocks.NewLayout(360)
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]service.PipelineOption{
		service.WithPool(worker.NewPool(2, worker.WithLogger(logger.Nop()))),
		service.WithPipelineLogger(logger.Nop()),
	}, opts...)
	return service.NewPipeline(l, opts...)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPipelineRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given raw survey rows for two days", t, func() {
		raws, err := readRaw(rawCSV)
		So(err, ShouldBeNil)
		store := repository.NewMemoryStore()
		p := testPipeline(t, service.WithPipelineStore(store))

		Convey("When the whole pipeline runs", func() {
			blockPath := filepath.Join(t.TempDir(), "days"+blockfile.Extension)
			res, err := p.Run(ctx, raws, blockPath)

			Convey("Then records are remapped with the unknown code dropped", func() {
				So(err, ShouldBeNil)
				So(res.RunID, ShouldNotBeEmpty)
				So(res.Stats.Read, ShouldEqual, 6)
				So(res.Stats.Dropped, ShouldEqual, 1)
				So(res.Stats.DroppedCodes[900000], ShouldEqual, 1)
			})

			Convey("Then day ids follow key order and the block file holds one row per day", func() {
				So(res.Days, ShouldEqual, 2)
				_, days, err := blockfile.ReadFile(blockPath)
				So(err, ShouldBeNil)
				// Serial 1 sorts first.
				So(days[0], ShouldResemble, blocks.Array{activity.Sleeping, activity.Sleeping, activity.Leisure, activity.Leisure})
				So(days[1], ShouldResemble, blocks.Array{activity.Sleeping, activity.Work, activity.Work, activity.Sleeping})
			})

			Convey("Then the model is built and stored", func() {
				So(res.Model.BlocksPerDay(), ShouldEqual, 4)
				So(res.Model.Counts.Grids[0].Count(activity.Sleeping, activity.Work), ShouldEqual, 1)
				So(res.Model.Counts.Grids[0].Count(activity.Sleeping, activity.Sleeping), ShouldEqual, 1)
				So(res.Model.Counts.Grids[3].Empty(), ShouldBeTrue)

				stored, err := store.Load(ctx, res.ModelID)
				So(err, ShouldBeNil)
				So(stored, ShouldEqual, res.Model)
			})
		})

		Convey("When a timestamp is malformed", func() {
			raws[3].Stop = "25:00:00"
			_, err := p.Run(ctx, raws, "")

			Convey("Then the run aborts with the timestamp error", func() {
				So(errors.Is(err, survey.ErrMalformedTimestamp), ShouldBeTrue)
				_, _, err := store.Latest(ctx)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the block file cannot be created", func() {
			_, err := p.Run(ctx, raws, filepath.Join(t.TempDir(), "missing", "dir", "x.ablk"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPipelineStages(t *testing.T) {
	ctx := context.Background()

	Convey("Given the stages run one file at a time", t, func() {
		dir := t.TempDir()
		raw := writeFile(t, dir, "raw.csv", rawCSV)
		remapped := filepath.Join(dir, "remapped.csv")
		tagged := filepath.Join(dir, "days.csv")
		blockPath := filepath.Join(dir, "blocks.ablk")

		db, err := repository.NewSQLiteStore(ctx, filepath.Join(dir, "models.db"), repository.WithLogger(logger.Nop()))
		So(err, ShouldBeNil)
		Reset(func() { _ = db.Close() })
		p := testPipeline(t, service.WithPipelineStore(db))

		stats, err := p.RemapFile(ctx, raw, remapped)
		So(err, ShouldBeNil)
		So(stats.Remapped, ShouldEqual, 5)

		days, err := p.DayIDFile(ctx, remapped, tagged)
		So(err, ShouldBeNil)
		So(days, ShouldEqual, 2)

		n, err := p.BlocksFile(ctx, tagged, blockPath)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 2)

		m, id, err := p.MatrixFile(ctx, blockPath)

		Convey("Then the model matches the in-memory run", func() {
			So(err, ShouldBeNil)
			So(id, ShouldNotBeEmpty)

			raws, err := readRaw(rawCSV)
			So(err, ShouldBeNil)
			res, err := testPipeline(t).Run(ctx, raws, "")
			So(err, ShouldBeNil)
			So(m.Counts.Grids, ShouldResemble, res.Model.Counts.Grids)
			So(m.Tables, ShouldResemble, res.Model.Tables)

			loaded, err := db.Load(ctx, id)
			So(err, ShouldBeNil)
			So(loaded.Tables, ShouldResemble, m.Tables)
		})

		Convey("Then a block file with another layout is rejected", func() {
			hourly, err := blocks.NewLayout(60)
			So(err, ShouldBeNil)
			_, _, err = service.NewPipeline(hourly, service.WithPipelineLogger(logger.Nop())).MatrixFile(ctx, blockPath)
			So(errors.Is(err, blocks.ErrShapeMismatch), ShouldBeTrue)
		})
	})
}

func TestPipelineBlocksFileSparseIDs(t *testing.T) {
	ctx := context.Background()

	Convey("Given a day-tagged file whose ids skip 1 through 4", t, func() {
		dir := t.TempDir()
		tagged := writeFile(t, dir, "days.csv", "day_id,start,stop,activity\n0,0,0,5\n5,0,0,0\n")
		blockPath := filepath.Join(dir, "blocks.ablk")

		n, err := testPipeline(t).BlocksFile(ctx, tagged, blockPath)

		Convey("Then only the two days present are written", func() {
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			_, days, err := blockfile.ReadFile(blockPath)
			So(err, ShouldBeNil)
			So(days, ShouldResemble, []blocks.Array{
				{activity.Work, activity.Work, activity.Work, activity.Work},
				{activity.Sleeping, activity.Sleeping, activity.Sleeping, activity.Sleeping},
			})
		})
	})
}

func readRaw(s string) ([]survey.RawRecord, error) {
	return tabular.ReadRaw(strings.NewReader(s), "raw.csv")
}
