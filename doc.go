// Package tessera provides methods for generating photo mosaics given a
// database (= set) of reference images and for shipping huge mosaics as a
// small number of sprite sheets.
//
// The pipeline has three stages that communicate through JSON metadata files:
// The Assembler matches each cell of a target image against the average colors
// of the reference images (see ColorIndex) and emits tiles plus a grid
// descriptor. The Packer partitions the grid into sprite sheets and the
// Stitcher reconstructs the full resolution mosaic from these sheets,
// verifying a sample of the tiles on the way.
//
// It ships with an executable program (cmd/tessera) that exposes the three
// stages as commands.
package tessera
