// Package chipdb locates tile bit databases on disk.
//
// A devices.yaml file at the database root declares the supported
// families, their devices, and the tile types each family has. The file
// is validated against an embedded CUE schema before use, so a typo in
// the device file fails loudly instead of sending a fuzz run to a
// nonsense path.
//
// A TileLocator names one tile type on one device; the Registry
// resolves it to the backing file under
// <root>/<family>/tiletypes/<TILETYPE>.tdb and hands out the shared
// bitdb database for it.
package chipdb
