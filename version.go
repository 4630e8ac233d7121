package scenefinder

// Version is the current scenefinder version
const Version = "0.3.0"
